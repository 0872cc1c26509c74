package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// StatusRecord is a raw positional status payload
type StatusRecord struct {
	ID          int64  `json:"id"`
	RawData     string `json:"rawData"`
	State       string `json:"state"`
	Abnormal    bool   `json:"abnormal"`
	ReceiveDate string `json:"receive_date"`
}

// Sample is one lamp reading of a single device
type Sample struct {
	DeviceID     int     `json:"deviceid"`
	CurrentRed   float64 `json:"current_red"`
	CurrentGreen float64 `json:"current_green"`
	VoltageRed   float64 `json:"voltage_red"`
	VoltageGreen float64 `json:"voltage_green"`
	UpdatedAt    int64   `json:"updated_at"`
}

// Equipment is one simulated unit
type Equipment struct {
	ID       string
	Type     string
	Devices  int
	Interval time.Duration
}

func main() {
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker address")
	username := flag.String("username", "user", "MQTT username")
	password := flag.String("password", "password", "MQTT password")
	mode := flag.String("mode", "continuous", "run mode: single, batch, continuous")
	flag.Parse()

	opts := paho.NewClientOptions()
	opts.AddBroker(*broker)
	clientID := fmt.Sprintf("signal-monitor-publisher-%d", time.Now().Unix())
	opts.SetClientID(clientID)
	opts.SetUsername(*username)
	opts.SetPassword(*password)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		fmt.Printf("connection lost: %v\n", err)
	})

	client := paho.NewClient(opts)

	if token := client.Connect(); token.Wait() && token.Error() != nil {
		fmt.Printf("failed to connect to MQTT broker: %v\n", token.Error())
		os.Exit(1)
	}

	fmt.Printf("connected to MQTT broker: %s\n", *broker)

	switch *mode {
	case "single":
		publishSingleStatus(client)
	case "batch":
		publishBatchSamples(client)
	case "continuous":
		publishContinuousData(client)
	default:
		fmt.Println("unknown mode, use single, batch or continuous")
		os.Exit(1)
	}
}

func publish(client paho.Client, topic string, payload []byte) {
	token := client.Publish(topic, 1, false, payload)
	token.Wait()

	if token.Error() != nil {
		fmt.Printf("publish to %s failed: %v\n", topic, token.Error())
	} else {
		fmt.Printf("published to %s: %s\n", topic, string(payload))
	}
}

// publishSingleStatus sends one DGL status record
func publishSingleStatus(client paho.Client) {
	data, err := json.Marshal(statusRecord("DGL", 1))
	if err != nil {
		fmt.Printf("failed to encode JSON: %v\n", err)
		return
	}
	publish(client, "devices/DGL/DGL1", data)
	client.Disconnect(250)
}

// publishBatchSamples sends one sample for every device of an AGL unit
func publishBatchSamples(client paho.Client) {
	for device := 0; device < 16; device++ {
		data, err := json.Marshal(sample(device))
		if err != nil {
			fmt.Printf("failed to encode JSON: %v\n", err)
			continue
		}
		publish(client, "devices/AGL/AGL1", data)
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Println("batch published")
	client.Disconnect(250)
}

func publishContinuousData(client paho.Client) {
	units := []Equipment{
		{ID: "AGL1", Type: "AGL", Devices: 8, Interval: 5 * time.Second},
		{ID: "AGL2", Type: "AGL", Devices: 4, Interval: 8 * time.Second},
		{ID: "DGL1", Type: "DGL", Interval: 6 * time.Second},
		{ID: "VGL1", Type: "VGL", Interval: 10 * time.Second},
	}

	for _, unit := range units {
		go func(u Equipment) {
			var id int64
			for {
				id++
				publishEquipmentData(client, u, id)
				time.Sleep(u.Interval)
			}
		}(unit)
		fmt.Printf("%s reports every %v\n", unit.ID, unit.Interval)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("disconnecting...")
	client.Disconnect(250)
}

func publishEquipmentData(client paho.Client, u Equipment, id int64) {
	topic := fmt.Sprintf("devices/%s/%s", u.Type, u.ID)

	if u.Devices > 0 {
		for device := 0; device < u.Devices; device++ {
			data, err := json.Marshal(sample(device))
			if err != nil {
				fmt.Printf("failed to encode JSON: %v\n", err)
				return
			}
			publish(client, topic, data)
		}
		return
	}

	data, err := json.Marshal(statusRecord(u.Type, id))
	if err != nil {
		fmt.Printf("failed to encode JSON: %v\n", err)
		return
	}
	publish(client, topic, data)
}

func statusRecord(equipmentType string, id int64) StatusRecord {
	var lines []string
	switch equipmentType {
	case "DGL":
		// voltR voltG currentR currentG temperature
		lines = []string{
			fmt.Sprint(2150 + rand.Intn(100)),
			fmt.Sprint(2150 + rand.Intn(100)),
			fmt.Sprint(400 + rand.Intn(200)),
			fmt.Sprint(400 + rand.Intn(200)),
			fmt.Sprint(600 + rand.Intn(100)),
		}
	default:
		for i := 0; i < 8; i++ {
			lines = append(lines, fmt.Sprint(rand.Intn(1000)))
		}
	}

	return StatusRecord{
		ID:          id,
		RawData:     strings.Join(lines, "\n"),
		State:       "normal",
		ReceiveDate: time.Now().Format(time.RFC3339),
	}
}

func sample(device int) Sample {
	return Sample{
		DeviceID:     device,
		CurrentRed:   float64(300 + rand.Intn(700)),
		CurrentGreen: float64(300 + rand.Intn(700)),
		VoltageRed:   float64(215 + rand.Intn(10)),
		VoltageGreen: float64(215 + rand.Intn(10)),
		UpdatedAt:    time.Now().Unix(),
	}
}
