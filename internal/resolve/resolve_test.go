package resolve

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/nlstn/go-odata-client/internal/metadata"
	"github.com/nlstn/go-odata-client/internal/odataerr"
	"github.com/nlstn/go-odata-client/internal/version"
)

func testSchema() *metadata.Static {
	s := metadata.NewStatic("Trippin")
	s.AddEntityType(metadata.EntityType{
		Name: "Person",
		Keys: []string{"UserName"},
		Properties: []metadata.Property{
			{Name: "UserName", Type: "Edm.String"},
			{Name: "FirstName", Type: "Edm.String"},
			{Name: "Email", Type: "Edm.String"},
		},
		AlternateKeys: [][]string{{"Email"}},
		Navigations: []metadata.Navigation{
			{Name: "Trips", Target: "Trip", Collection: true},
			{Name: "Friends", Target: "Person", Collection: true},
			{Name: "BestFriend", Target: "Person"},
		},
	})
	s.AddEntityType(metadata.EntityType{
		Name:        "Trip",
		Keys:        []string{"TripId"},
		Properties:  []metadata.Property{{Name: "TripId", Type: "Edm.Int32"}, {Name: "ShareId", Type: "Edm.Guid"}},
		Navigations: []metadata.Navigation{{Name: "PlanItems", Target: "PlanItem", Collection: true}},
	})
	s.AddEntityType(metadata.EntityType{
		Name:       "PlanItem",
		Keys:       []string{"PlanItemId"},
		Properties: []metadata.Property{{Name: "PlanItemId", Type: "Edm.Int32"}},
	})
	s.AddEntityType(metadata.EntityType{Name: "Flight", BaseType: "PlanItem"})
	s.AddEntityType(metadata.EntityType{
		Name: "Ticket",
		Keys: []string{"OrderId", "Seat"},
		Properties: []metadata.Property{
			{Name: "OrderId", Type: "Edm.Int64"},
			{Name: "Seat", Type: "Edm.String"},
			{Name: "Day", Type: "Edm.Date"},
		},
	})
	s.AddEntitySet("People", "Person")
	s.AddEntitySet("Tickets", "Ticket")
	s.AddSingleton("Me", "Person")
	s.AddOperation(metadata.Operation{
		Name:       "GetNearestAirport",
		Parameters: []metadata.Parameter{{Name: "lat", Type: "Edm.Double"}, {Name: "lon", Type: "Edm.Double"}},
		ReturnType: "Trippin.Airport",
	})
	s.AddOperation(metadata.Operation{Name: "ResetDataSource", IsAction: true})
	s.AddOperation(metadata.Operation{
		Name: "GetInvolvedPeople", IsBound: true,
		Parameters: []metadata.Parameter{{Name: "trip", Type: "Trippin.Trip"}},
		ReturnType: "Collection(Trippin.Person)",
	})
	s.AddOperation(metadata.Operation{
		Name: "ShareTrip", IsBound: true, IsAction: true,
		Parameters: []metadata.Parameter{{Name: "person", Type: "Trippin.Person"}, {Name: "userName", Type: "Edm.String"}, {Name: "tripId", Type: "Edm.Int32"}},
	})
	return s
}

func root(name string) Segment { return Segment{Kind: SegmentRoot, Name: name} }

func key(values ...interface{}) Segment {
	seg := Segment{Kind: SegmentKey}
	for _, v := range values {
		seg.Keys = append(seg.Keys, KeyValue{Value: v})
	}
	return seg
}

func named(pairs ...interface{}) Segment {
	seg := Segment{Kind: SegmentKey}
	for i := 0; i < len(pairs); i += 2 {
		seg.Keys = append(seg.Keys, KeyValue{Name: pairs[i].(string), Value: pairs[i+1]})
	}
	return seg
}

func nav(name string) Segment  { return Segment{Kind: SegmentNavigation, Name: name} }
func cast(name string) Segment { return Segment{Kind: SegmentCast, Name: name} }

func TestResolvePaths(t *testing.T) {
	r := &Resolver{Schema: testSchema(), Version: version.V4}

	tests := []struct {
		name       string
		segments   []Segment
		want       string
		collection bool
		single     bool
		typeName   string
	}{
		{"entity set", []Segment{root("People")}, "People", true, false, "Trippin.Person"},
		{"string key", []Segment{root("People"), key("russellwhyte")}, "People('russellwhyte')", false, true, "Trippin.Person"},
		{"quote in key", []Segment{root("People"), key("o'neil")}, "People('o''neil')", false, true, "Trippin.Person"},
		{"int for string key", []Segment{root("People"), key(42)}, "People('42')", false, true, "Trippin.Person"},
		{"composite key", []Segment{root("Tickets"), key(int64(7), "12A")}, "Tickets(OrderId=7,Seat='12A')", false, true, "Trippin.Ticket"},
		{"named composite reordered", []Segment{root("Tickets"), named("Seat", "1C", "OrderId", 3)}, "Tickets(OrderId=3,Seat='1C')", false, true, "Trippin.Ticket"},
		{"named single key", []Segment{root("People"), named("UserName", "scott")}, "People('scott')", false, true, "Trippin.Person"},
		{"alternate key", []Segment{root("People"), named("Email", "a@b.c")}, "People(Email='a@b.c')", false, true, "Trippin.Person"},
		{"navigation", []Segment{root("People"), key("russellwhyte"), nav("Trips")}, "People('russellwhyte')/Trips", true, false, "Trippin.Trip"},
		{"navigation chain", []Segment{root("People"), key("a"), nav("Trips"), key(1), nav("PlanItems")}, "People('a')/Trips(1)/PlanItems", true, false, "Trippin.PlanItem"},
		{"single navigation", []Segment{root("People"), key("a"), nav("BestFriend")}, "People('a')/BestFriend", false, true, "Trippin.Person"},
		{"navigation by type", []Segment{root("People"), key("a"), nav("Trip")}, "People('a')/Trips", true, false, "Trippin.Trip"},
		{"singleton", []Segment{root("Me")}, "Me", false, true, "Trippin.Person"},
		{"cast", []Segment{root("People"), key("a"), nav("Trips"), key(1), nav("PlanItems"), cast("Flight")}, "People('a')/Trips(1)/PlanItems/Trippin.Flight", true, false, "Trippin.Flight"},
		{"cast to same type", []Segment{root("People"), cast("Person")}, "People", true, false, "Trippin.Person"},
		{"unbound function", []Segment{{Kind: SegmentFunction, Name: "GetNearestAirport", Params: map[string]interface{}{"lon": -118.4, "lat": 33.0}}}, "GetNearestAirport(lat=33,lon=-118.4)", false, false, ""},
		{"unbound action", []Segment{{Kind: SegmentAction, Name: "ResetDataSource"}}, "ResetDataSource", false, false, ""},
		{"bound action", []Segment{root("People"), key("a"), {Kind: SegmentAction, Name: "ShareTrip"}}, "People('a')/Trippin.ShareTrip", false, false, ""},
		{"bound function", []Segment{root("People"), key("a"), nav("Trips"), key(0), {Kind: SegmentFunction, Name: "GetInvolvedPeople"}}, "People('a')/Trips(0)/Trippin.GetInvolvedPeople()", true, false, "Trippin.Person"},
		{"escaped key", []Segment{root("People"), key("a b/c")}, "People('a%20b%2Fc')", false, true, "Trippin.Person"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := r.Resolve(tt.segments)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if target.Path != tt.want {
				t.Errorf("Path = %q, want %q", target.Path, tt.want)
			}
			if target.Collection != tt.collection || target.Single != tt.single {
				t.Errorf("Collection, Single = %v, %v; want %v, %v", target.Collection, target.Single, tt.collection, tt.single)
			}
			got := ""
			if target.EntityType != nil {
				got = target.EntityType.FullName()
			}
			if got != tt.typeName {
				t.Errorf("EntityType = %q, want %q", got, tt.typeName)
			}
		})
	}
}

func TestResolveErrors(t *testing.T) {
	r := &Resolver{Schema: testSchema(), Version: version.V4}

	tests := []struct {
		name     string
		segments []Segment
		want     error
	}{
		{"unknown set", []Segment{root("Airlines")}, odataerr.ErrUnknownEntitySet},
		{"too few keys", []Segment{root("Tickets"), key(1)}, odataerr.ErrKeyMismatch},
		{"too many keys", []Segment{root("People"), key("a", "b")}, odataerr.ErrKeyMismatch},
		{"named non-key", []Segment{root("People"), named("FirstName", "Scott")}, odataerr.ErrKeyMismatch},
		{"key on singleton", []Segment{root("Me"), key("a")}, odataerr.ErrKeyMismatch},
		{"key type mismatch", []Segment{root("People"), key("a"), nav("Trips"), key("x")}, odataerr.ErrKeyMismatch},
		{"unknown navigation", []Segment{root("People"), nav("Pets")}, odataerr.ErrUnknownNavigation},
		{"ambiguous navigation by type", []Segment{root("People"), nav("Person")}, odataerr.ErrUnknownNavigation},
		{"unknown cast", []Segment{root("People"), cast("Airline")}, odataerr.ErrUnknownType},
		{"unrelated cast", []Segment{root("People"), cast("Trip")}, odataerr.ErrUnknownType},
		{"unknown operation", []Segment{{Kind: SegmentFunction, Name: "Nope"}}, odataerr.ErrUnknownProperty},
		{"action as function", []Segment{{Kind: SegmentFunction, Name: "ResetDataSource"}}, odataerr.ErrUnknownProperty},
		{"unknown parameter", []Segment{{Kind: SegmentFunction, Name: "GetNearestAirport", Params: map[string]interface{}{"x": 1}}}, odataerr.ErrUnknownProperty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(tt.segments)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Resolve() error = %v, want %v", err, tt.want)
			}
			var resErr *odataerr.ResolutionError
			if !errors.As(err, &resErr) {
				t.Errorf("expected *ResolutionError, got %T", err)
			}
		})
	}
}

func TestResolveUntyped(t *testing.T) {
	r := &Resolver{Version: version.V4}
	target, err := r.Resolve([]Segment{root("Products"), key(1), nav("Supplier")})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if target.Path != "Products(1)/Supplier" {
		t.Errorf("Path = %q", target.Path)
	}
	if target.EntityType != nil {
		t.Errorf("EntityType = %v, want nil", target.EntityType)
	}

	target, err = r.Resolve([]Segment{root("Lines"), named("OrderID", 1, "ProductID", 2)})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if target.Path != "Lines(OrderID=1,ProductID=2)" {
		t.Errorf("Path = %q", target.Path)
	}

	if _, err := r.Resolve([]Segment{root("Lines"), key(1, 2)}); !errors.Is(err, odataerr.ErrKeyMismatch) {
		t.Errorf("positional composite key without schema: error = %v", err)
	}
}

func TestResolveV3Literals(t *testing.T) {
	s := testSchema()
	s.AddEntityType(metadata.EntityType{
		Name:       "Share",
		Keys:       []string{"Id"},
		Properties: []metadata.Property{{Name: "Id", Type: "Edm.Guid"}},
	})
	s.AddEntitySet("Shares", "Share")
	id := uuid.MustParse("9d9b2fa0-efbf-490e-a5e3-bac8f7d47354")

	v3 := &Resolver{Schema: s, Version: version.V3}
	target, err := v3.Resolve([]Segment{root("Shares"), key(id)})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if target.Path != "Shares(guid'9d9b2fa0-efbf-490e-a5e3-bac8f7d47354')" {
		t.Errorf("v3 Path = %q", target.Path)
	}

	v4 := &Resolver{Schema: s, Version: version.V4}
	target, err = v4.Resolve([]Segment{root("Shares"), key(id.String())})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if target.Path != "Shares(9d9b2fa0-efbf-490e-a5e3-bac8f7d47354)" {
		t.Errorf("v4 Path = %q", target.Path)
	}
}

func TestResolveV3FunctionArguments(t *testing.T) {
	r := &Resolver{Schema: testSchema(), Version: version.V3}
	target, err := r.Resolve([]Segment{{Kind: SegmentFunction, Name: "GetNearestAirport", Params: map[string]interface{}{"lat": 33.5, "lon": 1.0}}})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if target.Path != "GetNearestAirport" {
		t.Errorf("Path = %q", target.Path)
	}
	if len(target.Params) != 2 || target.Params[0].Name != "lat" || target.Params[0].Value != "33.5" {
		t.Errorf("Params = %+v", target.Params)
	}
}

func TestResolveComplexFunctionArgument(t *testing.T) {
	r := &Resolver{Version: version.V4}
	target, err := r.Resolve([]Segment{{
		Kind:   SegmentFunction,
		Name:   "Distance",
		Params: map[string]interface{}{"from": map[string]interface{}{"City": "Oslo"}, "unit": "km"},
	}})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if target.Path != "Distance(from=@from,unit='km')" {
		t.Errorf("Path = %q", target.Path)
	}
	if len(target.Params) != 1 || target.Params[0].Name != "@from" || target.Params[0].Value != `{"City":"Oslo"}` {
		t.Errorf("Params = %+v", target.Params)
	}
}

func TestKeyPredicateMixedNames(t *testing.T) {
	r := &Resolver{Schema: testSchema(), Version: version.V4}
	et, _ := r.Schema.EntityType("Ticket")
	_, err := r.KeyPredicate(et, []KeyValue{{Name: "OrderId", Value: 1}, {Value: "1C"}})
	if !errors.Is(err, odataerr.ErrKeyMismatch) {
		t.Fatalf("KeyPredicate() error = %v, want ErrKeyMismatch", err)
	}
}

func TestCheckMember(t *testing.T) {
	s := testSchema()
	r := &Resolver{Schema: s, Version: version.V4}
	person, _ := s.EntityType("Person")

	tests := []struct {
		name   string
		expand []string
		path   []string
		want   error
	}{
		{name: "property", path: []string{"FirstName"}},
		{name: "through navigation", path: []string{"BestFriend", "Email"}},
		{name: "cast to derived type", path: []string{"Trips", "PlanItems", "Trippin.Flight", "PlanItemId"}},
		{name: "below expand", expand: []string{"Trips"}, path: []string{"ShareId"}},
		{name: "count", path: []string{"Trips", "$count"}},
		{name: "unknown property", path: []string{"Nickname"}, want: odataerr.ErrUnknownProperty},
		{name: "unknown below expand", expand: []string{"Trips"}, path: []string{"Email"}, want: odataerr.ErrUnknownProperty},
		{name: "property as expand", expand: []string{"FirstName"}, path: []string{"TripId"}, want: odataerr.ErrUnknownNavigation},
		{name: "unrelated cast", path: []string{"Trips", "Trippin.Person"}, want: odataerr.ErrUnknownType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.CheckMember(person, tt.expand, tt.path)
			if !errors.Is(err, tt.want) {
				t.Errorf("CheckMember() error = %v, want %v", err, tt.want)
			}
		})
	}

	if err := (&Resolver{Version: version.V4}).CheckMember(person, nil, []string{"Nickname"}); err != nil {
		t.Errorf("CheckMember() without schema error = %v", err)
	}
}
