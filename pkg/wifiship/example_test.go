package wifiship_test

import (
	"context"
	"fmt"

	"github.com/bft-labs/wifiship/pkg/wifiship"
)

// printDeliverer prints every batch instead of uploading it.
type printDeliverer struct{}

func (printDeliverer) Deliver(_ context.Context, b wifiship.Batch) wifiship.Outcome {
	fmt.Print(b.Text())
	return wifiship.Succeeded(200)
}

// ExampleWifiship_RunOnce runs one cycle against replayed GPS data and a
// fixed scan result.
func ExampleWifiship_RunOnce() {
	cafe, _ := wifiship.ParseMAC("aa:bb:cc:dd:ee:01")
	lab, _ := wifiship.ParseMAC("aa:bb:cc:dd:ee:02")

	cfg := wifiship.DefaultConfig()
	cfg.Username = "alice"
	cfg.FlushThreshold = 1

	w, err := wifiship.New(cfg,
		wifiship.WithFixSource(&gpsStream{line: ggaFix}),
		wifiship.WithScanner(&staticScanner{obs: []wifiship.Observation{
			{SSID: "cafe", BSSID: cafe, RSSI: -61, Auth: wifiship.AuthWPA2PSK},
			{SSID: "lab", BSSID: lab, RSSI: -80, Auth: wifiship.AuthOpen},
		}}),
		wifiship.WithLink(fixedLink(true)),
		wifiship.WithDeliverer(printDeliverer{}),
		wifiship.WithQueue(newMemQueue()),
	)
	if err != nil {
		fmt.Printf("failed to create wifiship: %v\n", err)
		return
	}

	report, err := w.RunOnce(context.Background())
	if err != nil {
		fmt.Printf("cycle failed: %v\n", err)
		return
	}
	fmt.Println("delivered:", report.Delivered)

	// Output:
	// cafe,WPA2-PSK,48.117300,11.516667,-61,AA:BB:CC:DD:EE:01
	// lab,Open,48.117300,11.516667,-80,AA:BB:CC:DD:EE:02
	// delivered: true
}

// stateLogger prints lifecycle transitions.
type stateLogger struct {
	wifiship.BaseEventHandler
}

func (stateLogger) OnStateChange(ev wifiship.StateChangeEvent) {
	fmt.Printf("%s -> %s\n", ev.Previous, ev.Current)
}

func Example_withEventHandler() {
	cfg := wifiship.DefaultConfig()
	cfg.Username = "alice"
	cfg.Once = true

	w, err := wifiship.New(cfg,
		wifiship.WithEventHandler(stateLogger{}),
		wifiship.WithFixSource(&gpsStream{line: ggaFix}),
		wifiship.WithScanner(&staticScanner{}),
		wifiship.WithLink(fixedLink(false)),
		wifiship.WithQueue(newMemQueue()),
	)
	if err != nil {
		fmt.Printf("failed to create wifiship: %v\n", err)
		return
	}
	if err := w.Start(context.Background()); err != nil {
		fmt.Printf("failed to start: %v\n", err)
		return
	}
	<-w.Done()

	// Output:
	// Stopped -> Starting
	// Starting -> Running
	// Running -> Stopping
	// Stopping -> Stopped
}
