package models

import "testing"

func TestSourceDiversity(t *testing.T) {
	tests := []struct {
		name    string
		members []Report
		want    int
	}{
		{name: "empty", members: nil, want: 0},
		{name: "single source", members: []Report{{Source: "a"}, {Source: "a"}}, want: 1},
		{name: "two sources", members: []Report{{Source: "a"}, {Source: "b"}}, want: 2},
		{name: "three with repeats", members: []Report{{Source: "a"}, {Source: "b"}, {Source: "a"}, {Source: "c"}}, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Cluster{Members: tt.members}
			if got := c.SourceDiversity(); got != tt.want {
				t.Errorf("SourceDiversity() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHasSourceAuthor(t *testing.T) {
	c := &Cluster{Members: []Report{
		{Source: "microblog", Author: "alice"},
		{Source: "photo", Author: "bob"},
	}}

	if !c.HasSourceAuthor("microblog", "alice") {
		t.Error("expected match for microblog/alice")
	}
	if c.HasSourceAuthor("microblog", "bob") {
		t.Error("unexpected match for microblog/bob")
	}
	if c.HasSourceAuthor("photo", "") {
		t.Error("empty author should never match")
	}
}

func TestLastNewAndNextSequenceNumber(t *testing.T) {
	c := &Cluster{}
	if c.LastNew() != nil {
		t.Error("expected no NEW record on fresh cluster")
	}
	if got := c.NextSequenceNumber(); got != 1 {
		t.Errorf("NextSequenceNumber() = %d, want 1", got)
	}

	c.AlertsEmitted = append(c.AlertsEmitted, AlertRecord{Kind: AlertNew, MemberCountAt: 1, SequenceNumber: 1})
	if c.LastNew() == nil {
		t.Fatal("expected NEW record")
	}
	if got := c.NextSequenceNumber(); got != 2 {
		t.Errorf("NextSequenceNumber() = %d, want 2", got)
	}
}

func TestBestLocation(t *testing.T) {
	r := &Report{}
	if r.BestLocation() != nil {
		t.Error("expected nil for report with no locations")
	}

	r.Locations = []Location{
		{Name: "city-level", Confidence: 0.5},
		{Name: "gazetteer", Confidence: 0.9},
		{Name: "pre-resolved", Confidence: 1.0},
	}
	best := r.BestLocation()
	if best == nil || best.Name != "pre-resolved" {
		t.Errorf("expected pre-resolved best match, got %+v", best)
	}
}

func TestDedupKeyFor(t *testing.T) {
	if got := DedupKeyFor("news-rss", "guid-123"); got != "news-rss:guid-123" {
		t.Errorf("DedupKeyFor() = %q", got)
	}
}
