package dataset

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestPrepare_CSV(t *testing.T) {
	in := "tanggal,sku,qty\n2024-01-01,A,3\n\n2024-01-02,B,5\n"
	ds, err := Prepare("sales.csv", strings.NewReader(in))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if ds.Name != "sales.csv" {
		t.Fatalf("Name = %q", ds.Name)
	}
	if ds.Records != 2 {
		t.Fatalf("Records = %d, want 2", ds.Records)
	}
	if strings.Join(ds.Header, "|") != "tanggal|sku|qty" {
		t.Fatalf("Header = %v", ds.Header)
	}
}

func TestPrepare_XLSXConvertsFirstSheet(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	_ = f.SetSheetRow(sheet, "A1", &[]any{"tanggal", "sku", "qty", "note"})
	_ = f.SetSheetRow(sheet, "A2", &[]any{"2024-01-01", "A", 3})
	_ = f.SetSheetRow(sheet, "A3", &[]any{"2024-01-02", "B", 5, "promo"})

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	ds, err := Prepare("penjualan.xlsx", &buf)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if ds.Name != "penjualan.csv" {
		t.Fatalf("Name = %q, want penjualan.csv", ds.Name)
	}
	want := "tanggal,sku,qty,note\n2024-01-01,A,3,\n2024-01-02,B,5,promo\n"
	if string(ds.Data) != want {
		t.Fatalf("Data =\n%s\nwant\n%s", ds.Data, want)
	}
}

func TestPrepare_Rejects(t *testing.T) {
	if _, err := Prepare("sales.json", strings.NewReader("{}")); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("json err = %v, want ErrUnsupported", err)
	}
	if _, err := Prepare("sales.csv", strings.NewReader("sku,qty\n")); !errors.Is(err, ErrEmpty) {
		t.Fatalf("header-only err = %v, want ErrEmpty", err)
	}
	if _, err := Prepare("sales.csv", strings.NewReader("")); !errors.Is(err, ErrEmpty) {
		t.Fatalf("empty err = %v, want ErrEmpty", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.csv")
	if err := os.WriteFile(path, []byte("sku,qty\nA,1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	ds, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.Records != 1 {
		t.Fatalf("Records = %d", ds.Records)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("Load of missing file succeeded")
	}
}
