// Package storetest holds behaviour tests shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/internalerr"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/store"
)

// Run exercises a store created fresh by open for each subtest.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("AppendAndRead", func(t *testing.T) { testAppendAndRead(t, open(t)) })
	t.Run("DuplicateIdentifier", func(t *testing.T) { testDuplicateIdentifier(t, open(t)) })
	t.Run("FindRowByIdentifier", func(t *testing.T) { testFind(t, open(t)) })
	t.Run("DeleteRowShifts", func(t *testing.T) { testDeleteRowShifts(t, open(t)) })
	t.Run("DeleteRowNotFound", func(t *testing.T) { testDeleteRowNotFound(t, open(t)) })
	t.Run("MarkTombstone", func(t *testing.T) { testMarkTombstone(t, open(t)) })
	t.Run("ListPartitions", func(t *testing.T) { testListPartitions(t, open(t)) })
	t.Run("CopiesAreSeparate", func(t *testing.T) { testCopiesSeparate(t, open(t)) })
}

func row(id, average string) store.Row {
	return store.Row{
		Status:        "Accepted",
		School:        "waterloo",
		Program:       "computer science",
		Average:       average,
		Date:          "Feb 2",
		ApplicantType: "101",
		Submitter:     "alice",
		Tags:          "computer science, waterloo",
		Identifier:    id,
	}
}

func mustAppend(t *testing.T, s store.Store, c store.Copy, partition string, r store.Row) {
	t.Helper()
	if err := s.AppendRow(context.Background(), c, partition, r); err != nil {
		t.Fatalf("AppendRow(%s, %s, %s): %v", c, partition, r.Identifier, err)
	}
}

func identifiers(t *testing.T, s store.Store, c store.Copy, partition string) []string {
	t.Helper()
	rows, err := s.ReadAllRows(context.Background(), c, partition)
	if err != nil {
		t.Fatalf("ReadAllRows: %v", err)
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Identifier
	}
	return out
}

func testAppendAndRead(t *testing.T, s store.Store) {
	defer s.Close()

	private := row("m1", "95.5")
	private.SubmitterID = "42"
	private.Note = "scholarship"
	mustAppend(t, s, store.Private, "2023-2024", private)

	rows, err := s.ReadAllRows(context.Background(), store.Private, "2023-2024")
	if err != nil {
		t.Fatalf("ReadAllRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	got := rows[0]
	if got.SubmitterID != "42" || got.Note != "scholarship" || got.Average != "95.5" || got.Deleted {
		t.Errorf("unexpected row %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set on append")
	}

	empty, err := s.ReadAllRows(context.Background(), store.Public, "1999-2000")
	if err != nil {
		t.Fatalf("ReadAllRows(unknown): %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("unknown partition should be empty, got %d rows", len(empty))
	}
}

func testDuplicateIdentifier(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	mustAppend(t, s, store.Public, "2023-2024", row("m1", "90"))
	err := s.AppendRow(ctx, store.Public, "2023-2024", row("m1", "91"))
	if !errors.Is(err, internalerr.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Same identifier in another partition is allowed.
	mustAppend(t, s, store.Public, "2024-2025", row("m1", "92"))

	// Rows without identifiers (anonymous public copies) never collide.
	mustAppend(t, s, store.Public, "2023-2024", row("", "93"))
	mustAppend(t, s, store.Public, "2023-2024", row("", "94"))

	if got := identifiers(t, s, store.Public, "2023-2024"); len(got) != 3 {
		t.Errorf("expected 3 rows, got %v", got)
	}
}

func testFind(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	mustAppend(t, s, store.Public, "2023-2024", row("a", "90"))
	mustAppend(t, s, store.Public, "2023-2024", row("b", "91"))
	mustAppend(t, s, store.Public, "2024-2025", row("c", "92"))

	loc, err := s.FindRowByIdentifier(ctx, store.Public, "b")
	if err != nil {
		t.Fatalf("FindRowByIdentifier: %v", err)
	}
	if want := (store.Location{Partition: "2023-2024", Index: 2}); loc != want {
		t.Errorf("loc = %+v, want %+v", loc, want)
	}

	loc, err = s.FindRowByIdentifier(ctx, store.Public, "c")
	if err != nil || loc.Partition != "2024-2025" || loc.Index != 1 {
		t.Errorf("loc = %+v, err = %v", loc, err)
	}

	for _, id := range []string{"zzz", ""} {
		if _, err := s.FindRowByIdentifier(ctx, store.Public, id); !errors.Is(err, internalerr.ErrNotFound) {
			t.Errorf("FindRowByIdentifier(%q): expected ErrNotFound, got %v", id, err)
		}
	}
}

func testDeleteRowShifts(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		mustAppend(t, s, store.Public, "2023-2024", row(id, "90"))
	}

	if err := s.DeleteRow(ctx, "2023-2024", 2); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}
	if got := identifiers(t, s, store.Public, "2023-2024"); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("rows after delete = %v", got)
	}

	loc, err := s.FindRowByIdentifier(ctx, store.Public, "c")
	if err != nil || loc.Index != 2 {
		t.Errorf("row c should have shifted to index 2, got %+v (%v)", loc, err)
	}
}

func testDeleteRowNotFound(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	mustAppend(t, s, store.Public, "2023-2024", row("a", "90"))

	for _, idx := range []int{0, 2, -1} {
		if err := s.DeleteRow(ctx, "2023-2024", idx); !errors.Is(err, internalerr.ErrNotFound) {
			t.Errorf("DeleteRow(%d): expected ErrNotFound, got %v", idx, err)
		}
	}
	if err := s.DeleteRow(ctx, "1999-2000", 1); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("DeleteRow(unknown partition): expected ErrNotFound, got %v", err)
	}
}

func testMarkTombstone(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	mustAppend(t, s, store.Private, "2023-2024", row("a", "90"))
	mustAppend(t, s, store.Private, "2023-2024", row("b", "91"))

	if err := s.MarkTombstone(ctx, "2023-2024", 1); err != nil {
		t.Fatalf("MarkTombstone: %v", err)
	}

	rows, err := s.ReadAllRows(ctx, store.Private, "2023-2024")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("tombstone must not remove the row, got %d rows", len(rows))
	}
	if !rows[0].Deleted || rows[1].Deleted {
		t.Errorf("deleted flags = %v, %v", rows[0].Deleted, rows[1].Deleted)
	}

	if _, err := s.FindRowByIdentifier(ctx, store.Private, "a"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("tombstoned row should not be found, got %v", err)
	}
	if err := s.MarkTombstone(ctx, "2023-2024", 5); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("MarkTombstone(5): expected ErrNotFound, got %v", err)
	}
}

func testListPartitions(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	mustAppend(t, s, store.Public, "2024-2025", row("a", "90"))
	mustAppend(t, s, store.Private, "2022-2023", row("b", "90"))
	mustAppend(t, s, store.Public, store.ReservedPartition, row("c", "90"))

	got, err := s.ListPartitions(ctx)
	if err != nil {
		t.Fatalf("ListPartitions: %v", err)
	}
	if want := []string{"2022-2023", "2024-2025"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ListPartitions = %v, want %v", got, want)
	}
}

func testCopiesSeparate(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	mustAppend(t, s, store.Public, "2023-2024", row("a", "90"))
	mustAppend(t, s, store.Private, "2023-2024", row("a", "90"))

	if err := s.DeleteRow(ctx, "2023-2024", 1); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}
	if got := identifiers(t, s, store.Private, "2023-2024"); len(got) != 1 {
		t.Errorf("deleting a public row must not touch the private copy, got %v", got)
	}
}
