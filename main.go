package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	. "github.com/elijahnyp/pjlink_controller/util"
)

var model Model

var registry = NewRegistry(nil)

var state_publisher StatePublisher

/* ***************************************
Message Router
*/

func subscribeCommandTopics() {
	ClearMQTTSubscriptions()
	for _, topic := range model.SubscribeTopics() {
		RegisterMQTTSubscription(topic, receiver)
	}
	ResubscribeMQTT()
}

func rebuildProjectors() {
	registry.Rebuild(model.Projectors)
}

// parseSwitch accepts the payloads Home Assistant and hand-typed
// mosquitto_pub commands use for a boolean.
func parseSwitch(payload string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(payload)) {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("unrecognized switch payload %q", payload)
}

func receiver(client MQTT.Client, message MQTT.Message) {
	Logger.Info().Msgf("Message Received on topic %s", message.Topic())
	name, kind := model.FindProjectorByTopic(message.Topic())
	if kind < 0 {
		Logger.Debug().Msgf("topic %s not found in model.  Fix subscription or add to model", message.Topic())
		return
	}
	projector, ok := registry.Get(name)
	if !ok {
		Logger.Warn().Msgf("projector %s is configured but not running", name)
		return
	}
	payload := strings.TrimSpace(string(message.Payload()))
	switch kind {
	case POWER_SET:
		on, err := parseSwitch(payload)
		if err != nil {
			Logger.Warn().Msgf("%s: %v", message.Topic(), err)
			return
		}
		if err := projector.SetPower(on); err != nil {
			Logger.Warn().Msgf("power command for %s not sent: %v", name, err)
		}
	case INPUT_SET:
		if err := projector.ChangeInput(payload); err != nil {
			Logger.Warn().Msgf("input command for %s not sent: %v", name, err)
		}
	case POLLING_SET:
		on, err := parseSwitch(payload)
		if err != nil {
			Logger.Warn().Msgf("%s: %v", message.Topic(), err)
			return
		}
		projector.SetPollingEnabled(on)
		state_publisher.Enqueue(name)
	}
}

// publishProjector pushes the current status of one projector to MQTT, the
// websocket clients and the metrics registry.
func publishProjector(name string) {
	projector, ok := registry.Get(name)
	if !ok {
		return
	}
	status := projector.Status()
	ObserveStatus(status)
	if wsHub != nil {
		wsHub.BroadcastUpdate("projector_status", status)
	}
	if err := PublishProjectorStatus(status); err != nil {
		Logger.Debug().Msgf("state for %s not published: %v", name, err)
	}
}

func restartStatePublisher() {
	state_publisher.Stop()
	state_publisher.MakeStatePublisher(registry.Names, publishProjector)
	state_publisher.Start()
}

func registerRoutes(monitor *MonitorServer) {
	monitor.AddHandler("/ws", ServeWebSocket)
	monitor.AddHandler("/api/status", APISystemStatus)
	monitor.AddHandler("/api/projector", APIProjectorDetail)
	monitor.AddHandler("/api/projector/power", APIProjectorPower)
	monitor.AddHandler("/api/projector/input", APIProjectorInput)
	monitor.AddRawHandler("/metrics", MetricsHandler())
}

func main() {
	LogInit("trace")
	SetupConfig()
	state_publisher.MakeStatePublisher(registry.Names, publishProjector)
	registry.OnChange(func(name string) { state_publisher.Enqueue(name) })
	RegisterNewConfigListener(func() { LogInit(Config.GetString("log_level")) })
	RegisterNewConfigListener(func() {
		if err := model.BuildModel(); err != nil {
			Logger.Error().Msgf("Error building model: %v", err)
		}
	})
	RegisterNewConfigListener(subscribeCommandTopics)
	RegisterNewConfigListener(rebuildProjectors)
	RegisterMQTTConnectHook("haadvertise", func(client MQTT.Client) {
		AdvertiseHA(model.Projectors, client)
	})
	RegisterMQTTConnectHook("republish", func(client MQTT.Client) {
		for _, name := range registry.Names() {
			state_publisher.Enqueue(name)
		}
	})
	RegisterNewConfigListener(MqttInit)
	OnNewConfig()
	state_publisher.Start()
	RegisterNewConfigListener(restartStatePublisher)

	monitor := NewMonitorServer()
	registerRoutes(monitor)
	if err := monitor.Start(); err != nil {
		Logger.Error().Msgf("Error starting monitor server: %v", err)
	}
	RegisterNewConfigListener(func() { monitor.Restart() })
	Logger.Info().Msg("ready")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go OnlinePinger(ctx)
	go HAAdvertiser(ctx)
	<-ctx.Done()

	Logger.Info().Msg("shutting down")
	registry.Close()
	state_publisher.Stop()
	monitor.Stop()
	if err := Publish(AvailabilityTopic(), true, "offline"); err != nil {
		Logger.Debug().Msgf("offline not published: %v", err)
	}
	if Client != nil && Client.IsConnected() {
		Client.Disconnect(250)
	}
}

// online pinger
func OnlinePinger(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		if err := Publish(AvailabilityTopic(), true, "online"); err != nil {
			Logger.Debug().Msgf("Error publishing online message: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// HAAdvertiser - advertises Home Assistant discovery messages every 5 minutes
func HAAdvertiser(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if Client != nil && Client.IsConnected() {
				Logger.Debug().Msg("Advertising Home Assistant discovery messages")
				AdvertiseHA(model.Projectors, Client)
			}
		}
	}
}
