package roster

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/educlass/portal/internal/kv"
	"github.com/educlass/portal/internal/models"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// flakyKV fails every Set once failSet is on, and every Get once failGet is on.
type flakyKV struct {
	*kv.Memory
	failSet bool
	failGet bool
}

func (f *flakyKV) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failGet {
		return "", false, errors.New("backend down")
	}
	return f.Memory.Get(ctx, key)
}

func (f *flakyKV) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errors.New("disk full")
	}
	return f.Memory.Set(ctx, key, value)
}

func rec(id, name, email, course string) models.StudentRecord {
	return models.StudentRecord{
		StudentID:        id,
		FullName:         name,
		Email:            email,
		Course:           course,
		Level:            "Beginner",
		Gender:           "Other",
		RegistrationDate: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
	}
}

func TestLoad_MissingKeyIsEmpty(t *testing.T) {
	s := NewStore(kv.NewMemory(), quietLogger())
	if got := s.Load(context.Background()); len(got) != 0 {
		t.Fatalf("expected empty roster, got %d", len(got))
	}
}

func TestLoad_MalformedSnapshotIsEmpty(t *testing.T) {
	mem := kv.NewMemory()
	_ = mem.Set(context.Background(), "students", "{not json")
	s := NewStore(mem, quietLogger())
	if got := s.Load(context.Background()); len(got) != 0 {
		t.Fatalf("expected empty roster on malformed snapshot, got %d", len(got))
	}
}

func TestLoad_BackendErrorIsEmpty(t *testing.T) {
	s := NewStore(&flakyKV{Memory: kv.NewMemory(), failGet: true}, quietLogger())
	if got := s.Load(context.Background()); len(got) != 0 {
		t.Fatalf("expected empty roster on backend error, got %d", len(got))
	}
}

func TestAppendPersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	s := NewStore(mem, quietLogger())
	s.Load(ctx)

	if err := s.Append(ctx, rec("STU00000001", "Ann Lee", "ann@x.io", "Music")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, rec("STU00000002", "Bob Ray", "bob@x.io", "Science")); err != nil {
		t.Fatalf("append: %v", err)
	}

	reloaded := NewStore(mem, quietLogger()).Load(ctx)
	if len(reloaded) != 2 {
		t.Fatalf("expected 2 records after reload, got %d", len(reloaded))
	}
	if reloaded[0].StudentID != "STU00000001" || reloaded[1].StudentID != "STU00000002" {
		t.Fatalf("insertion order not preserved: %v", reloaded)
	}
	if !reloaded[0].RegistrationDate.Equal(time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("registration date not round-tripped: %v", reloaded[0].RegistrationDate)
	}
}

func TestAppend_FailedPersistRollsBack(t *testing.T) {
	ctx := context.Background()
	backing := &flakyKV{Memory: kv.NewMemory()}
	s := NewStore(backing, quietLogger())
	if err := s.Append(ctx, rec("STU00000001", "Ann", "ann@x.io", "Music")); err != nil {
		t.Fatalf("append: %v", err)
	}

	backing.failSet = true
	err := s.Append(ctx, rec("STU00000002", "Bob", "bob@x.io", "Music"))
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected roster rolled back to 1 record, got %d", s.Len())
	}
	if _, ok := s.FindByStudentID("STU00000002"); ok {
		t.Fatalf("rolled-back record still visible")
	}
}

func TestAppend_AfterFailedLoadKeepsPersistedRoster(t *testing.T) {
	ctx := context.Background()
	backing := &flakyKV{Memory: kv.NewMemory()}
	seed := NewStore(backing, quietLogger())
	for _, r := range []models.StudentRecord{
		rec("STU00000001", "Ann", "ann@x.io", "Music"),
		rec("STU00000002", "Bob", "bob@x.io", "Music"),
		rec("STU00000003", "Cy", "cy@x.io", "Art & Design"),
	} {
		if err := seed.Append(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	backing.failGet = true
	s := NewStore(backing, quietLogger())
	if got := s.Load(ctx); len(got) != 0 {
		t.Fatalf("expected empty roster while the backend is down, got %d", len(got))
	}

	// Still down: the append must fail rather than overwrite the snapshot.
	var se *StorageError
	if err := s.Append(ctx, rec("STU00000004", "Dee", "dee@x.io", "Music")); !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}

	backing.failGet = false
	if err := s.Append(ctx, rec("STU00000004", "Dee", "dee@x.io", "Music")); err != nil {
		t.Fatalf("append after recovery: %v", err)
	}
	if s.Len() != 4 {
		t.Fatalf("expected the reloaded roster plus one, got %d", s.Len())
	}
	persisted := NewStore(backing, quietLogger()).Load(ctx)
	if len(persisted) != 4 || persisted[0].StudentID != "STU00000001" || persisted[3].StudentID != "STU00000004" {
		t.Fatalf("persisted roster lost records: %v", persisted)
	}
}

func TestAppendNew_AfterFailedLoadAvoidsPersistedIDs(t *testing.T) {
	ctx := context.Background()
	backing := &flakyKV{Memory: kv.NewMemory()}
	now := time.UnixMilli(1_700_000_123_456)
	if err := NewStore(backing, quietLogger()).Append(ctx, rec("STU00123456", "Ann", "ann@x.io", "Music")); err != nil {
		t.Fatal(err)
	}

	backing.failGet = true
	s := NewStore(backing, quietLogger())
	s.Load(ctx)
	backing.failGet = false

	got, err := s.AppendNew(ctx, now, func(id string) models.StudentRecord {
		return rec(id, "Bob", "bob@x.io", "Music")
	})
	if err != nil {
		t.Fatalf("append new: %v", err)
	}
	if got.StudentID != "STU00123457" {
		t.Fatalf("expected the persisted id to be skipped, got %s", got.StudentID)
	}
}

func TestFindByEmailIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory(), quietLogger())
	_ = s.Append(ctx, rec("STU00000001", "Ann", "Ann@Example.com", "Music"))

	got, ok := s.FindByEmail("ann@example.COM")
	if !ok || got.StudentID != "STU00000001" {
		t.Fatalf("expected case-insensitive match, got %v %v", got, ok)
	}
	if _, ok := s.FindByStudentID("stu00000001"); ok {
		t.Fatalf("student id lookup must be exact")
	}
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory(), quietLogger())
	_ = s.Append(ctx, rec("STU00000001", "Alice Smith", "alice@x.io", "Music"))
	_ = s.Append(ctx, rec("STU00000002", "Bob Jones", "bob@x.io", "Science"))
	_ = s.Append(ctx, rec("STU00000003", "Carol Smithers", "carol@x.io", "Science"))

	cases := []struct {
		term, course string
		want         []string
	}{
		{"", "", []string{"STU00000001", "STU00000002", "STU00000003"}},
		{"smith", "", []string{"STU00000001", "STU00000003"}},
		{"SMITH", "Science", []string{"STU00000003"}},
		{"stu00000002", "", []string{"STU00000002"}},
		{"@x.io", "Music", []string{"STU00000001"}},
		{"", "Art & Design", nil},
		{"nobody", "", nil},
	}
	for _, tc := range cases {
		got := s.Query(tc.term, tc.course)
		if len(got) != len(tc.want) {
			t.Errorf("Query(%q,%q): got %d records, want %d", tc.term, tc.course, len(got), len(tc.want))
			continue
		}
		for i := range got {
			if got[i].StudentID != tc.want[i] {
				t.Errorf("Query(%q,%q)[%d] = %s, want %s", tc.term, tc.course, i, got[i].StudentID, tc.want[i])
			}
		}
	}
}

func TestAppendNew_UniqueWithinSameMillisecond(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory(), quietLogger())
	now := time.UnixMilli(1_700_000_123_456)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		r, err := s.AppendNew(ctx, now, func(id string) models.StudentRecord {
			return rec(id, "Same Time", "t@x.io", "Music")
		})
		if err != nil {
			t.Fatalf("append new: %v", err)
		}
		if seen[r.StudentID] {
			t.Fatalf("duplicate student id %s", r.StudentID)
		}
		seen[r.StudentID] = true
	}
	if !seen["STU00123456"] || !seen["STU00123457"] || !seen["STU00123458"] {
		t.Fatalf("unexpected ids %v", seen)
	}
}

func TestNextStudentIDFormat(t *testing.T) {
	id, err := NextStudentID(time.UnixMilli(42), func(string) bool { return false })
	if err != nil {
		t.Fatal(err)
	}
	if id != "STU00000042" {
		t.Fatalf("expected zero-padded id, got %s", id)
	}
	wrap, _ := NextStudentID(time.UnixMilli(99_999_999), func(id string) bool { return id == "STU99999999" })
	if wrap != "STU00000000" {
		t.Fatalf("expected wrap-around to STU00000000, got %s", wrap)
	}
}

func TestWriteCSV(t *testing.T) {
	r := rec("STU00000001", "Lee, Ann", "ann@x.io", "Art & Design")
	r.Phone = "555"
	r.DateOfBirth = "2001-02-03"

	var sb strings.Builder
	if err := WriteCSV(&sb, []models.StudentRecord{r}, time.UTC); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if lines[0] != "Student ID,Name,Email,Phone,Course,Level,Gender,Date of Birth,Registration Date" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	want := `STU00000001,"Lee, Ann",ann@x.io,555,Art & Design,Beginner,Other,2001-02-03,3/5/2024`
	if lines[1] != want {
		t.Fatalf("unexpected row\n got %q\nwant %q", lines[1], want)
	}
}

func TestWriteCSV_EmptyRosterHasHeaderOnly(t *testing.T) {
	var sb strings.Builder
	if err := WriteCSV(&sb, nil, nil); err != nil {
		t.Fatal(err)
	}
	if strings.Count(sb.String(), "\n") != 1 {
		t.Fatalf("expected header only, got %q", sb.String())
	}
}
