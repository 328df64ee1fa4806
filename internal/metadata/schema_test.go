package metadata

import "testing"

func tripPinSchema(t *testing.T) *Static {
	t.Helper()
	s := NewStatic("Trippin")
	if err := s.Register(testPerson{}, "People"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := s.RegisterSingleton(testPerson{}, "Me"); err != nil {
		t.Fatalf("RegisterSingleton() error = %v", err)
	}
	if err := s.RegisterType(testFlight{}, "testPlanItem"); err != nil {
		t.Fatalf("RegisterType() error = %v", err)
	}
	s.AddOperation(Operation{Name: "GetNearestAirport", ReturnType: "Trippin.Airport"})
	s.AddOperation(Operation{Name: "GetInvolvedPeople", IsBound: true, ReturnType: "Collection(Trippin.testPerson)"})
	return s
}

func TestStaticRegister(t *testing.T) {
	s := tripPinSchema(t)

	set, ok := s.EntitySet("People")
	if !ok || set.EntityType != "testPerson" {
		t.Fatalf("EntitySet(People) = %+v, %v", set, ok)
	}

	person, ok := s.EntityType("Trippin.testPerson")
	if !ok {
		t.Fatal("EntityType(Trippin.testPerson) not found")
	}
	if person.FullName() != "Trippin.testPerson" {
		t.Errorf("FullName() = %q", person.FullName())
	}
	if nav, ok := person.Navigation("Trips"); !ok || !nav.Collection {
		t.Errorf("Navigation(Trips) = %+v, %v", nav, ok)
	}
	if p, ok := person.Property("AddressInfo"); !ok || p.Type != "Collection(Trippin.testLocation)" {
		t.Errorf("Property(AddressInfo) = %+v, %v", p, ok)
	}
	if person.KeyType("UserName") != "Edm.String" {
		t.Errorf("KeyType(UserName) = %q", person.KeyType("UserName"))
	}

	// Navigation targets are registered transitively
	if _, ok := s.EntityType("testPlanItem"); !ok {
		t.Error("testPlanItem should be registered through Trips/PlanItems")
	}
	if _, ok := s.Singleton("Me"); !ok {
		t.Error("singleton Me not registered")
	}
}

func TestStaticInheritance(t *testing.T) {
	s := tripPinSchema(t)

	flight, ok := s.EntityType("testFlight")
	if !ok {
		t.Fatal("testFlight not registered")
	}
	if flight.BaseType != "testPlanItem" {
		t.Errorf("BaseType = %q", flight.BaseType)
	}
	if len(flight.Keys) != 1 || flight.Keys[0] != "PlanItemId" {
		t.Errorf("inherited Keys = %v", flight.Keys)
	}
	if _, ok := flight.Property("Duration"); !ok {
		t.Error("inherited property Duration missing")
	}
	if _, ok := flight.Property("FlightNumber"); !ok {
		t.Error("own property FlightNumber missing")
	}
	if !IsDerivedFrom(s, "testFlight", "Trippin.testPlanItem") {
		t.Error("testFlight should derive from testPlanItem")
	}
	if IsDerivedFrom(s, "testPlanItem", "testFlight") {
		t.Error("testPlanItem should not derive from testFlight")
	}
}

func TestStaticEntitySetOf(t *testing.T) {
	s := tripPinSchema(t)

	set, ok := s.EntitySetOf("testPerson")
	if !ok || set.Name != "People" {
		t.Errorf("EntitySetOf(testPerson) = %+v, %v", set, ok)
	}
	if _, ok := s.EntitySetOf("testTrip"); ok {
		t.Error("testTrip has no entity set")
	}

	s.AddEntitySet("Staff", "testPerson")
	if _, ok := s.EntitySetOf("testPerson"); ok {
		t.Error("ambiguous entity set should not resolve")
	}
}

func TestStaticOperation(t *testing.T) {
	s := tripPinSchema(t)

	op, ok := s.Operation("Trippin.GetInvolvedPeople")
	if !ok {
		t.Fatal("qualified operation lookup failed")
	}
	if !op.ReturnsCollection() || op.ReturnElementType() != "Trippin.testPerson" {
		t.Errorf("return type = %q", op.ReturnType)
	}
	if _, ok := s.Operation("Other.GetInvolvedPeople"); ok {
		t.Error("operation in another namespace should not resolve")
	}
}

func TestEntityTypeKeys(t *testing.T) {
	et := EntityType{
		Keys:          []string{"OrderID", "LineNo"},
		AlternateKeys: [][]string{{"SKU", "Store"}},
	}
	if !et.IsKey([]string{"LineNo", "OrderID"}) {
		t.Error("IsKey should ignore order")
	}
	if et.IsKey([]string{"OrderID"}) {
		t.Error("partial key accepted")
	}
	if alt, ok := et.MatchAlternateKey([]string{"Store", "SKU"}); !ok || alt[0] != "SKU" {
		t.Errorf("MatchAlternateKey() = %v, %v", alt, ok)
	}
}
