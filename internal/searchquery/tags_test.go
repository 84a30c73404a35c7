package searchquery

import "testing"

func TestExtractHashTagsLowercases(t *testing.T) {
	tags := ExtractHashTags("fix the bug #Urgent #P1")
	if len(tags) != 2 || tags[0] != "urgent" || tags[1] != "p1" {
		t.Fatalf("unexpected tags: %v", tags)
	}
}

func TestExtractTemporalTags(t *testing.T) {
	tags := ExtractTemporalTags("ship this @2026-08-01 before @friday")
	if len(tags) != 2 || tags[0] != "2026-08-01" || tags[1] != "friday" {
		t.Fatalf("unexpected temporal tags: %v", tags)
	}
}

func TestDeriveMetadataDueDateIsMinimumParseableTag(t *testing.T) {
	meta := DeriveMetadata("do this @2030-01-01 or this @2026-08-01", fixedNow)
	if meta.DueDate == nil {
		t.Fatal("expected a due date")
	}
	want, _ := ParseTemporalLiteral("2026-08-01", fixedNow)
	if !meta.DueDate.Equal(want) {
		t.Fatalf("DueDate = %v, want the earlier of the two tags (%v)", meta.DueDate, want)
	}
}

func TestDeriveMetadataOverdue(t *testing.T) {
	meta := DeriveMetadata("stale @2020-01-01", fixedNow)
	if !meta.Overdue {
		t.Fatal("expected Overdue to be true for a past due date")
	}

	meta = DeriveMetadata("fresh @2030-01-01", fixedNow)
	if meta.Overdue {
		t.Fatal("expected Overdue to be false for a future due date")
	}
}

func TestDeriveMetadataNoTemporalTagHasNoDueDate(t *testing.T) {
	meta := DeriveMetadata("just a plain card", fixedNow)
	if meta.DueDate != nil {
		t.Fatalf("expected no due date, got %v", meta.DueDate)
	}
	if meta.Overdue {
		t.Fatal("expected Overdue to be false with no due date")
	}
}
