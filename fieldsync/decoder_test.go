package fieldsync

import (
	"encoding/json"
	"testing"
	"time"
)

const sampleRecord = `{"id":1,"uniqueName":"Valhall","latitude":56.278,"longitude":3.394}`

func TestDecodeRecordsShapeFallback(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"bare array", `[` + sampleRecord + `]`},
		{"data envelope", `{"success":true,"message":"ok","data":[` + sampleRecord + `]}`},
		{"generic object", `{"foo":1,"data":[` + sampleRecord + `]}`},
		{"case-insensitive data key", `{"Data":[` + sampleRecord + `]}`},
	}

	var want PlatformDTO
	if err := json.Unmarshal([]byte(sampleRecord), &want); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			records, recognized := decodeRecords([]byte(tc.payload))
			if !recognized {
				t.Fatalf("payload not recognized: %s", tc.payload)
			}
			if len(records) != 1 {
				t.Fatalf("got %d records", len(records))
			}

			var dto PlatformDTO
			if err := json.Unmarshal(records[0], &dto); err != nil {
				t.Fatalf("unmarshal record: %v", err)
			}
			if dto.Id != want.Id || dto.UniqueName != want.UniqueName ||
				dto.Latitude != want.Latitude || dto.Longitude != want.Longitude {
				t.Fatalf("normalized record differs across shapes: %+v vs %+v", dto, want)
			}
		})
	}
}

func TestDecodeRecordsUnrecognized(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"not json", `<html>oops</html>`},
		{"object without data", `{"foo":1,"bar":"baz"}`},
		{"scalar", `42`},
		{"data not an array", `{"data":{"id":1}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			records, recognized := decodeRecords([]byte(tc.payload))
			if recognized || records != nil {
				t.Fatalf("payload %q unexpectedly recognized", tc.payload)
			}
		})
	}
}

func TestDecodeRecordsEmptyButValid(t *testing.T) {
	for _, payload := range []string{`[]`, `{"data":[]}`} {
		records, recognized := decodeRecords([]byte(payload))
		if !recognized {
			t.Fatalf("payload %q should be recognized", payload)
		}
		if len(records) != 0 {
			t.Fatalf("payload %q yielded %d records", payload, len(records))
		}
	}
}

func TestDecodeRecordsCaseInsensitiveFields(t *testing.T) {
	// PascalCase deployments decode to the same DTO.
	records, recognized := decodeRecords([]byte(`[{"Id":5,"UniqueName":"Tor","Latitude":56.64,"Longitude":3.19}]`))
	if !recognized || len(records) != 1 {
		t.Fatal("pascal-case payload not recognized")
	}
	var dto PlatformDTO
	if err := json.Unmarshal(records[0], &dto); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if dto.Id.String() != "5" || dto.UniqueName != "Tor" {
		t.Fatalf("dto = %+v", dto)
	}
}

func TestResolveTimestamps(t *testing.T) {
	created := "2020-01-02T03:04:05Z"
	updated := "2021-06-07T08:09:10Z"
	single := "2022-03-04T05:06:07Z"

	wantCreated := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	wantUpdated := time.Date(2021, 6, 7, 8, 9, 10, 0, time.UTC)
	wantSingle := time.Date(2022, 3, 4, 5, 6, 7, 0, time.UTC)

	t.Run("canonical pair wins", func(t *testing.T) {
		c, u := resolveTimestamps(created, updated, single)
		if !c.Equal(wantCreated) || !u.Equal(wantUpdated) {
			t.Fatalf("got %v / %v", c, u)
		}
	})

	t.Run("single timestamp serves both roles", func(t *testing.T) {
		c, u := resolveTimestamps("", "", single)
		if !c.Equal(wantSingle) || !u.Equal(wantSingle) {
			t.Fatalf("got %v / %v", c, u)
		}
	})

	t.Run("missing updated falls back to created", func(t *testing.T) {
		c, u := resolveTimestamps(created, "", "")
		if !c.Equal(wantCreated) || !u.Equal(wantCreated) {
			t.Fatalf("got %v / %v", c, u)
		}
	})

	t.Run("no timezone layout", func(t *testing.T) {
		c, _ := resolveTimestamps("2020-01-02T03:04:05", "", "")
		if !c.Equal(wantCreated) {
			t.Fatalf("got %v", c)
		}
	})
}
