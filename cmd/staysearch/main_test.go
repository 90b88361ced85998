package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/kailas-cloud/staysearch/internal/domain/search/filter"
	"github.com/kailas-cloud/staysearch/internal/usecase/answer"
)

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "staysearch dev") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()
	want := map[string]bool{"serve": false, "ask": false, "search": false, "version": false}
	for _, c := range cmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestWriterSink(t *testing.T) {
	var out, status bytes.Buffer
	s := &writerSink{out: &out, status: &status}
	s.Transition(answer.StateRetrieving)
	s.Transition(answer.StateStart)
	if err := s.Token("Shin"); err != nil {
		t.Fatal(err)
	}
	_ = s.Token("juku")

	if out.String() != "Shinjuku" {
		t.Errorf("out = %q", out.String())
	}
	if status.String() != answer.StateRetrieving.Message()+"\n" {
		t.Errorf("status = %q", status.String())
	}
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	if err := printTable(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "no matching listings") {
		t.Errorf("empty table = %q", buf.String())
	}

	buf.Reset()
	rows := []answer.ListingSummary{{ID: 7, Name: "Loft", Neighbourhood: "Shibuya", PriceDisplay: "¥9,000", Score: 0.8123}}
	if err := printTable(&buf, rows); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"RANK", "0.8123", "Loft", "¥9,000"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("table missing %q:\n%s", want, buf.String())
		}
	}
}

func TestPrintJSON_StructuredFilters(t *testing.T) {
	maxPrice := 25000.0
	pred, err := filter.New(nil, &maxPrice, "Shibuya")
	if err != nil {
		t.Fatalf("filter.New: %v", err)
	}
	var buf bytes.Buffer
	rows := []answer.ListingSummary{{ID: 7, Name: "Loft", Score: 0.8}}
	if err := printJSON(&buf, pred, rows); err != nil {
		t.Fatal(err)
	}

	var body struct {
		Filters map[string]any   `json:"filters"`
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(buf.Bytes(), &body); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if body.Filters["max_price"] != 25000.0 || body.Filters["neighborhood"] != "Shibuya" {
		t.Errorf("filters = %v", body.Filters)
	}
	if v, ok := body.Filters["min_price"]; !ok || v != nil {
		t.Errorf("min_price = %v (present %v), want null", v, ok)
	}
	if len(body.Results) != 1 {
		t.Errorf("results = %v", body.Results)
	}
}
