package expr

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nlstn/go-odata-client/internal/odataerr"
	"github.com/shopspring/decimal"
)

type personGender int

func (g personGender) String() string {
	if g == 1 {
		return "Female"
	}
	return "Male"
}

type city struct {
	CountryRegion string `json:"CountryRegion"`
	Name          string `json:"Name"`
	Region        string `json:"Region"`
}

type location struct {
	Address string `json:"Address"`
	City    *city  `json:"City,omitempty"`
}

type Audit struct {
	CreatedBy string `json:"CreatedBy,omitempty"`
}

type event struct {
	Audit
	PlanItemID int             `json:"PlanItemId"`
	Duration   time.Duration   `json:"Duration"`
	Budget     decimal.Decimal `json:"Budget"`
	ShareID    uuid.UUID       `json:"ShareId"`
	Gender     personGender    `json:"Gender"`
	OccursAt   location        `json:"OccursAt"`
	Emails     []string        `json:"Emails"`
	Notes      *string         `json:"Notes,omitempty"`
	Internal   string          `json:"-"`
	hidden     string
}

func TestValueBagStruct(t *testing.T) {
	ev := event{
		Audit:      Audit{CreatedBy: "scott"},
		PlanItemID: 33,
		Duration:   3 * time.Hour,
		Budget:     decimal.RequireFromString("1500.50"),
		ShareID:    uuid.MustParse("9d9b2fa0-efbf-490e-a5e3-bac8f7d47354"),
		Gender:     personGender(1),
		OccursAt: location{
			Address: "100 Church Street",
			City:    &city{CountryRegion: "United States", Name: "New York City", Region: "New York"},
		},
		Emails:   []string{"a@example.com"},
		Internal: "skip",
		hidden:   "skip",
	}

	bag, err := ValueBag(ev)
	if err != nil {
		t.Fatalf("ValueBag() error = %v", err)
	}

	want := map[string]interface{}{
		"CreatedBy":  "scott",
		"PlanItemId": 33,
		"Duration":   "PT3H",
		"Budget":     json.Number("1500.5"),
		"ShareId":    "9d9b2fa0-efbf-490e-a5e3-bac8f7d47354",
		"Gender":     "Female",
		"OccursAt": map[string]interface{}{
			"Address": "100 Church Street",
			"City": map[string]interface{}{
				"CountryRegion": "United States",
				"Name":          "New York City",
				"Region":        "New York",
			},
		},
		"Emails": []interface{}{"a@example.com"},
	}
	if !reflect.DeepEqual(bag, want) {
		t.Errorf("ValueBag() =\n  %#v\nwant\n  %#v", bag, want)
	}
}

func TestValueBagMap(t *testing.T) {
	bag, err := ValueBag(map[string]interface{}{
		"LastName": "White",
		"AddressInfo": []location{{
			Address: "187 Suffolk Ln.",
			City:    &city{Name: "Boise", Region: "ID", CountryRegion: "United States"},
		}},
	})
	if err != nil {
		t.Fatalf("ValueBag() error = %v", err)
	}

	info, ok := bag["AddressInfo"].([]interface{})
	if !ok || len(info) != 1 {
		t.Fatalf("AddressInfo = %#v", bag["AddressInfo"])
	}
	loc := info[0].(map[string]interface{})
	if loc["City"].(map[string]interface{})["Name"] != "Boise" {
		t.Errorf("nested city = %#v", loc["City"])
	}
	if bag["LastName"] != "White" {
		t.Errorf("LastName = %v", bag["LastName"])
	}
}

func TestValueBagUnsupported(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
	}{
		{"scalar", 42},
		{"nil pointer", (*event)(nil)},
		{"channel leaf", map[string]interface{}{"C": make(chan int)}},
		{"func leaf", struct{ F func() }{F: func() {}}},
		{"complex leaf", map[string]interface{}{"Z": complex(1, 2)}},
		{"int keyed map leaf", map[string]interface{}{"M": map[int]string{1: "a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValueBag(tt.value)
			if !errors.Is(err, odataerr.ErrUnsupportedExpression) {
				t.Fatalf("expected ErrUnsupportedExpression, got %v", err)
			}
		})
	}
}

func TestTranslateValueBag(t *testing.T) {
	got, err := Translate(Lit(struct {
		LastName string
		Age      int `json:"age,omitempty"`
	}{LastName: "White"}), ModeValueBag, Options{})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got != `{"LastName":"White"}` {
		t.Errorf("Translate() = %s", got)
	}

	if _, err := Translate(Prop("A"), ModeValueBag, Options{}); !errors.Is(err, odataerr.ErrUnsupportedExpression) {
		t.Errorf("expected ErrUnsupportedExpression for member, got %v", err)
	}
}

func TestSortedKeys(t *testing.T) {
	keys := SortedKeys(map[string]interface{}{"lon": 1, "lat": 2})
	if !reflect.DeepEqual(keys, []string{"lat", "lon"}) {
		t.Errorf("SortedKeys() = %v", keys)
	}
}
