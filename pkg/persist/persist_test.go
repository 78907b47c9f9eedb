package persist

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crystal-mush/gorom/pkg/growable"
)

func TestResultString(t *testing.T) {
	tests := []struct {
		r    Result
		want string
	}{
		{OK(), "ok"},
		{FormatErr(12, "expected #CLASS, got %q", "#RACE"), `format error at line 12: expected #CLASS, got "#RACE"`},
		{UnsupportedErr("no json"), "unsupported: no json"},
		{Result{Status: StatusInternalError, Line: NoLine}, "internal error"},
	}
	for _, tt := range tests {
		if got := tt.r.String(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestResultOf(t *testing.T) {
	if r := ResultOf(nil); !r.IsOK() {
		t.Errorf("nil error should be OK, got %v", r)
	}

	r := ResultOf(fmt.Errorf("races: %w", Errorf(7, "bad flag %q", "glow")))
	if r.Status != StatusFormatError || r.Line != 7 {
		t.Errorf("expected format error at 7, got %+v", r)
	}

	r = ResultOf(fmt.Errorf("append: %w", growable.ErrCapacity))
	if r.Status != StatusInternalError {
		t.Errorf("expected internal error, got %v", r.Status)
	}

	_, err := os.Open(filepath.Join(t.TempDir(), "missing.olc"))
	r = ResultOf(err)
	if r.Status != StatusIOError || r.Line != NoLine {
		t.Errorf("expected I/O error, got %+v", r)
	}
}

func TestResultErrRoundTrip(t *testing.T) {
	r := FormatErr(3, "boom")
	err := r.Err()
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if back := ResultOf(err); back != r {
		t.Errorf("round trip changed result: %+v vs %+v", back, r)
	}
	if OK().Err() != nil {
		t.Error("OK().Err() should be nil")
	}
}

func TestMemReaderFillDoubles(t *testing.T) {
	data := []byte(strings.Repeat("x", fillStart*3+17))
	r := NewMemReader(data)
	b, _ := r.GetByte()
	if b != 'x' {
		t.Fatalf("GetByte: got %q", b)
	}
	rest, err := r.Fill()
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != len(data)-1 {
		t.Errorf("expected %d bytes, got %d", len(data)-1, len(rest))
	}
	if cap(rest) != fillStart*4 {
		t.Errorf("expected doubled capacity %d, got %d", fillStart*4, cap(rest))
	}
	if _, err := r.GetByte(); err != io.EOF {
		t.Errorf("expected EOF after Fill, got %v", err)
	}
}

func TestFileStreams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.olc")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := NewFileWriter(f)
	w.PutByte('1')
	w.Write([]byte("\n#CLASS\n"))
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	f, _ = os.Open(path)
	defer f.Close()
	r := NewFileReader(f)
	if _, err := RequireFile(r, FormatROM); err != nil {
		t.Errorf("file reader rejected: %v", err)
	}
	all, _ := r.Fill()
	if string(all) != "1\n#CLASS\n" {
		t.Errorf("unexpected content %q", all)
	}
}

func TestRequireFileRejectsMemory(t *testing.T) {
	_, err := RequireFile(NewMemReader(nil), FormatROM)
	if r := ResultOf(err); r.Status != StatusUnsupported {
		t.Errorf("expected unsupported, got %v", r)
	}
	_, err = RequireFileWriter(&MemWriter{}, FormatROM)
	if r := ResultOf(err); r.Status != StatusUnsupported {
		t.Errorf("expected unsupported, got %v", r)
	}
}

func TestRegistrySelect(t *testing.T) {
	reg := NewRegistry[*[]string]("classes", FormatROM)
	rom := &Format[*[]string]{Name: FormatROM}
	reg.Register(rom)

	if f := reg.Select("classes.json"); f != rom {
		t.Error("without json registered, .json should fall back to rom-olc")
	}

	js := &Format[*[]string]{Name: FormatJSON}
	reg.Register(js)
	cases := map[string]*Format[*[]string]{
		"classes.json": js,
		"CLASSES.JSON": js,
		"classes.olc":  rom,
		"classes":      rom,
		"a.json.bak":   rom,
	}
	for name, want := range cases {
		if got := reg.Select(name); got != want {
			t.Errorf("Select(%q) = %s, want %s", name, got.Name, want.Name)
		}
	}
	if names := reg.Names(); len(names) != 2 || names[0] != FormatJSON {
		t.Errorf("unexpected names %v", names)
	}
	if _, ok := reg.Sectioned(); ok {
		t.Error("rom-olc without section funcs should not be sectioned")
	}
}

func TestEnvelope(t *testing.T) {
	w := &MemWriter{}
	if err := EncodeEnvelope(w, Section{Key: "races", Items: []string{"human", "elf"}}); err != nil {
		t.Fatal(err)
	}
	raws, err := DecodeEnvelope(w.Bytes(), "races")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raws[0]), "elf") {
		t.Errorf("unexpected array %s", raws[0])
	}

	_, err = DecodeEnvelope([]byte(`{"formatVersion": 2, "races": []}`), "races")
	if r := ResultOf(err); r.Status != StatusUnsupported {
		t.Errorf("version 2: expected unsupported, got %v", r)
	}
	_, err = DecodeEnvelope([]byte(`{"formatVersion": 1}`), "races")
	if r := ResultOf(err); r.Status != StatusFormatError {
		t.Errorf("missing array: expected format error, got %v", r)
	}
	_, err = DecodeEnvelope([]byte(`{"formatVersion": 1, "races": {}}`), "races")
	if r := ResultOf(err); r.Status != StatusFormatError {
		t.Errorf("object instead of array: expected format error, got %v", r)
	}
	_, err = DecodeEnvelope([]byte(`{"formatVersion": `), "races")
	if r := ResultOf(err); r.Status != StatusFormatError {
		t.Errorf("truncated: expected format error, got %v", r)
	}
}
