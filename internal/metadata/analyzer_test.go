package metadata

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type testLocation struct {
	Address string `json:"Address"`
	City    string `json:"City"`
}

type testPlanItem struct {
	PlanItemID int           `json:"PlanItemId" odata:"key"`
	Duration   time.Duration `json:"Duration"`
}

type testFlight struct {
	testPlanItem
	FlightNumber string `json:"FlightNumber"`
}

type testTrip struct {
	TripID    int32          `json:"TripId" odata:"key"`
	ShareID   uuid.UUID      `json:"ShareId"`
	Budget    float32        `json:"Budget"`
	PlanItems []testPlanItem `json:"PlanItems"`
}

type testPerson struct {
	UserName    string          `json:"UserName" odata:"key"`
	Emails      []string        `json:"Emails"`
	AddressInfo []testLocation  `json:"AddressInfo"`
	Home        *testLocation   `json:"HomeAddress"`
	Gender      int             `json:"Gender" odata:"enum=NS.PersonGender"`
	Concurrency int64           `json:"Concurrency" odata:"etag"`
	Trips       []testTrip      `json:"Trips"`
	BestFriend  *testPerson     `json:"BestFriend"`
	Income      decimal.Decimal `json:"Income"`
	Secret      string          `json:"-"`
	internal    string
}

type testOrderLine struct {
	OrderID int    `odata:"key"`
	LineNo  int    `odata:"key"`
	SKU     string `odata:"altkey=sku"`
	Store   string `odata:"altkey=sku"`
}

type testProductWithAutoKey struct {
	ID    int     `json:"id"`
	Price float64 `json:"price"`
}

type testNoKey struct {
	Name string
}

func TestAnalyzeEntity(t *testing.T) {
	tests := []struct {
		name        string
		entity      interface{}
		wantErr     bool
		checkResult func(*testing.T, *EntityMetadata)
	}{
		{
			name:   "explicit string key",
			entity: testPerson{},
			checkResult: func(t *testing.T, meta *EntityMetadata) {
				if meta.EntityName != "testPerson" {
					t.Errorf("EntityName = %v, want testPerson", meta.EntityName)
				}
				if len(meta.KeyProperties) != 1 || meta.KeyProperties[0].Name != "UserName" {
					t.Errorf("KeyProperties = %+v", meta.KeyProperties)
				}
				if meta.ETagProperty == nil || meta.ETagProperty.Name != "Concurrency" {
					t.Errorf("ETagProperty = %+v", meta.ETagProperty)
				}
				if len(meta.Properties) != 9 {
					t.Errorf("len(Properties) = %d, want 9", len(meta.Properties))
				}
			},
		},
		{
			name:   "auto-detected key",
			entity: &testProductWithAutoKey{},
			checkResult: func(t *testing.T, meta *EntityMetadata) {
				if len(meta.KeyProperties) != 1 || meta.KeyProperties[0].Name != "id" {
					t.Errorf("KeyProperties = %+v", meta.KeyProperties)
				}
				if meta.EntitySetName != "testProductWithAutoKeys" {
					t.Errorf("EntitySetName = %v", meta.EntitySetName)
				}
			},
		},
		{
			name:   "composite and alternate keys",
			entity: testOrderLine{},
			checkResult: func(t *testing.T, meta *EntityMetadata) {
				if len(meta.KeyProperties) != 2 {
					t.Fatalf("len(KeyProperties) = %d, want 2", len(meta.KeyProperties))
				}
				if len(meta.AlternateKeys) != 1 || len(meta.AlternateKeys[0]) != 2 {
					t.Errorf("AlternateKeys = %v", meta.AlternateKeys)
				}
			},
		},
		{
			name:   "embedded base type",
			entity: testFlight{},
			checkResult: func(t *testing.T, meta *EntityMetadata) {
				if len(meta.KeyProperties) != 1 || meta.KeyProperties[0].Name != "PlanItemId" {
					t.Errorf("KeyProperties = %+v", meta.KeyProperties)
				}
			},
		},
		{name: "no key", entity: testNoKey{}, wantErr: true},
		{name: "not a struct", entity: 5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := AnalyzeEntity(tt.entity)
			if (err != nil) != tt.wantErr {
				t.Fatalf("AnalyzeEntity() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.checkResult != nil {
				tt.checkResult(t, meta)
			}
		})
	}
}

func TestAnalyzeEntityPropertyKinds(t *testing.T) {
	meta, err := AnalyzeEntity(testPerson{})
	if err != nil {
		t.Fatalf("AnalyzeEntity() error = %v", err)
	}

	byName := make(map[string]PropertyMetadata)
	for _, p := range meta.Properties {
		byName[p.Name] = p
	}

	if p := byName["Trips"]; !p.IsNavigationProp || !p.NavigationIsArray || p.NavigationTarget != "testTrip" {
		t.Errorf("Trips = %+v, want collection navigation to testTrip", p)
	}
	if p := byName["BestFriend"]; !p.IsNavigationProp || p.NavigationIsArray {
		t.Errorf("BestFriend = %+v, want single navigation", p)
	}
	if p := byName["AddressInfo"]; p.IsNavigationProp || !p.IsComplex || p.EdmType != "Collection(testLocation)" {
		t.Errorf("AddressInfo = %+v, want complex collection", p)
	}
	if p := byName["Emails"]; p.EdmType != "Collection(Edm.String)" {
		t.Errorf("Emails EdmType = %q", p.EdmType)
	}
	if p := byName["Gender"]; p.EdmType != "NS.PersonGender" {
		t.Errorf("Gender EdmType = %q", p.EdmType)
	}
	if p := byName["Income"]; p.EdmType != "Edm.Decimal" || p.IsComplex {
		t.Errorf("Income = %+v, want Edm.Decimal", p)
	}
	if _, ok := byName["Secret"]; ok {
		t.Error("json:\"-\" field should be skipped")
	}
}

func TestPluralize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Product", "Products"},
		{"Category", "Categories"},
		{"Key", "Keys"},
		{"Box", "Boxes"},
		{"Match", "Matches"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := pluralize(tt.input); result != tt.expected {
				t.Errorf("pluralize(%v) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}
