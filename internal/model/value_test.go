package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestValue_Constructors(t *testing.T) {
	if v := Number(2.5); v.Kind != KindNumber || v.Num != 2.5 {
		t.Errorf("Number() = %+v", v)
	}
	if v := String("monthly"); v.Kind != KindString || v.Str != "monthly" {
		t.Errorf("String() = %+v", v)
	}
	if v := Boolean(true); v.Kind != KindBool || !v.Bool {
		t.Errorf("Boolean() = %+v", v)
	}
	ts := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	if v := Timestamp(ts); v.Kind != KindTime || !v.Time.Equal(ts) {
		t.Errorf("Timestamp() = %+v", v)
	}
	if v := Null(); v.Kind != KindNull || !v.IsZero() {
		t.Errorf("Null() = %+v", v)
	}
	if Number(0).IsZero() {
		t.Error("a zero number is not the null variant")
	}
}

func TestValue_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"number", Number(12.5), "12.5"},
		{"string", String("lapsed"), `"lapsed"`},
		{"bool", Boolean(false), "false"},
		{"null", Null(), "null"},
		{
			"timestamp",
			Timestamp(time.Date(2025, time.February, 1, 9, 30, 0, 0, time.UTC)),
			`"2025-02-01T09:30:00Z"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.in)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("marshal = %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := json.Marshal(Value{Kind: ValueKind(99)}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestValue_UnmarshalJSON(t *testing.T) {
	var v Value

	if err := json.Unmarshal([]byte("41.5"), &v); err != nil || v.Kind != KindNumber || v.Num != 41.5 {
		t.Errorf("number unmarshal = %+v, err %v", v, err)
	}
	if err := json.Unmarshal([]byte("true"), &v); err != nil || v.Kind != KindBool || !v.Bool {
		t.Errorf("bool unmarshal = %+v, err %v", v, err)
	}
	if err := json.Unmarshal([]byte("null"), &v); err != nil || v.Kind != KindNull {
		t.Errorf("null unmarshal = %+v, err %v", v, err)
	}
	if err := json.Unmarshal([]byte(`"west coast"`), &v); err != nil || v.Kind != KindString || v.Str != "west coast" {
		t.Errorf("string unmarshal = %+v, err %v", v, err)
	}
}

func TestValue_UnmarshalJSON_TimestampCoercion(t *testing.T) {
	var v Value
	if err := json.Unmarshal([]byte(`"2025-02-01T09:30:00Z"`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.Kind != KindTime {
		t.Fatalf("kind = %v, want time for an RFC 3339 string", v.Kind)
	}
	want := time.Date(2025, time.February, 1, 9, 30, 0, 0, time.UTC)
	if !v.Time.Equal(want) {
		t.Errorf("time = %v, want %v", v.Time, want)
	}

	// A date without the time component is not RFC 3339 and stays a string.
	if err := json.Unmarshal([]byte(`"2025-02-01"`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.Kind != KindString || v.Str != "2025-02-01" {
		t.Errorf("bare date = %+v, want string passthrough", v)
	}
}

func TestValue_UnmarshalJSON_RejectsComposites(t *testing.T) {
	var v Value
	if err := json.Unmarshal([]byte(`{"nested": 1}`), &v); err == nil {
		t.Error("expected error for object input")
	}
	if err := json.Unmarshal([]byte(`[1, 2]`), &v); err == nil {
		t.Error("expected error for array input")
	}
}

func TestValue_TimestampRoundTrip(t *testing.T) {
	// Whole-second precision; the wire format drops anything finer.
	in := Timestamp(time.Date(2025, time.July, 4, 16, 45, 10, 0, time.UTC))

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Value
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Kind != KindTime || !out.Time.Equal(in.Time) {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}
