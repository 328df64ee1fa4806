package odata_test

import (
	"fmt"

	odata "github.com/nlstn/go-odata-client"
)

func ExampleCommand_Request() {
	client, err := odata.NewClient("https://services.odata.org/V4/TripPinServiceRW")
	if err != nil {
		panic(err)
	}

	req, err := client.For("People").
		Filter(odata.P("FirstName").Eq("Scott")).
		Top(5).
		Request(odata.OpRead)
	if err != nil {
		panic(err)
	}
	fmt.Println(req.RelativeURL())
	// Output: People?$filter=FirstName%20eq%20'Scott'&$top=5
}

func ExampleCommand_NavigateTo() {
	client, err := odata.NewClient("https://services.odata.org/V4/TripPinServiceRW")
	if err != nil {
		panic(err)
	}

	req, err := client.For("People").Key("russellwhyte").NavigateTo("Trips").Request(odata.OpRead)
	if err != nil {
		panic(err)
	}
	fmt.Println(req.URL(client.BaseURL()))
	// Output: https://services.odata.org/V4/TripPinServiceRW/People('russellwhyte')/Trips
}
