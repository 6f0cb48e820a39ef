package nav

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// SnapshotHandler is called for every peer snapshot received over MQTT.
// err is non-nil when the payload could not be decoded or merged.
type SnapshotHandler func(peerID string, snapshot *GridSnapshot, err error)

// PoseHandler is called for every peer pose received over MQTT
type PoseHandler func(msg *PoseMessage)

// MQTTClient manages the MQTT connection and the peer grid subscriptions
type MQTTClient struct {
	client      mqtt.Client
	config      *Config
	grid        *GridMap
	onSnapshot  SnapshotHandler
	onPose      PoseHandler
	isConnected bool
	merged      map[string]int
	mu          sync.RWMutex
}

// InitMQTT connects to the broker and merges every peer snapshot into grid.
// If no broker is configured (MQTT_BROKER env var or config), MQTT is
// disabled and this returns nil, nil.
func InitMQTT(config *Config, grid *GridMap, handler SnapshotHandler) (*MQTTClient, error) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" && config != nil && config.MQTT.Broker != "" {
		broker = config.MQTT.Broker
	}

	if broker == "" {
		log.Println("MQTT disabled: MQTT_BROKER not set")
		return nil, nil
	}

	if config == nil || grid == nil {
		return nil, fmt.Errorf("MQTT enabled but no configuration or grid provided")
	}

	client := &MQTTClient{
		config:     config,
		grid:       grid,
		onSnapshot: handler,
		merged:     make(map[string]int),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" && config.MQTT.ClientID != "" {
		clientID = config.MQTT.ClientID
	}
	if clientID == "" {
		clientID = "tudonav-" + config.AgentID
	}
	opts.SetClientID(clientID)

	username := os.Getenv("MQTT_USERNAME")
	if username == "" && config.MQTT.Username != "" {
		username = config.MQTT.Username
	}
	if username != "" {
		opts.SetUsername(username)
		password := os.Getenv("MQTT_PASSWORD")
		if password == "" && config.MQTT.Password != "" {
			password = config.MQTT.Password
		}
		opts.SetPassword(password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false) // keep subscriptions across reconnects
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)
	opts.SetReconnectingHandler(client.onReconnecting)

	client.client = mqtt.NewClient(opts)

	go client.connectWithRetry()

	return client, nil
}

// connectWithRetry attempts to connect to the broker with exponential backoff
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("Connecting to MQTT broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("Successfully connected to MQTT broker")
				c.setConnected(true)
				return
			}
			log.Printf("MQTT connection failed: %v", token.Error())
		} else {
			log.Println("MQTT connection timeout")
		}

		log.Printf("Retrying MQTT connection in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay = min(retryDelay*2, maxRetryDelay)
	}
}

// onConnect subscribes to every peer topic
func (c *MQTTClient) onConnect(client mqtt.Client) {
	log.Println("MQTT connected, subscribing to peer topics...")
	c.setConnected(true)

	for _, peer := range c.config.Peers {
		if peer.Topic == "" {
			continue
		}

		log.Printf("Subscribing to %s for peer %s", peer.Topic, peer.ID)
		token := client.Subscribe(peer.Topic, 0, c.createMessageHandler(peer.ID, peer.Confidence))

		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("Error subscribing to %s: %v", peer.Topic, token.Error())
		} else {
			log.Printf("Successfully subscribed to %s", peer.Topic)
		}

		if poseTopic, ok := derivePoseTopic(peer.Topic); ok {
			poseToken := client.Subscribe(poseTopic, 0, c.createPoseHandler(peer.ID))
			if poseToken.WaitTimeout(5*time.Second) && poseToken.Error() != nil {
				log.Printf("Error subscribing to %s: %v", poseTopic, poseToken.Error())
			}
		}
	}
}

// derivePoseTopic converts a peer grid topic to its pose topic.
// Example: "tudonav/scout-2/grid" -> "tudonav/scout-2/pose"
func derivePoseTopic(gridTopic string) (string, bool) {
	parts := strings.Split(gridTopic, "/")
	if len(parts) < 2 || parts[len(parts)-1] != "grid" {
		return "", false
	}
	parts[len(parts)-1] = "pose"
	return strings.Join(parts, "/"), true
}

// createPoseHandler forwards peer pose messages to the pose handler
func (c *MQTTClient) createPoseHandler(peerID string) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		var pose PoseMessage
		if err := json.Unmarshal(msg.Payload(), &pose); err != nil {
			log.Printf("Error decoding pose from %s: %v", peerID, err)
			return
		}
		if pose.AgentID == "" {
			pose.AgentID = peerID
		}
		if pose.AgentID == c.config.AgentID {
			return
		}
		if h := c.getPoseHandler(); h != nil {
			h(&pose)
		}
	}
}

// SetPoseHandler registers a callback for peer pose messages
func (c *MQTTClient) SetPoseHandler(handler PoseHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPose = handler
}

func (c *MQTTClient) getPoseHandler() PoseHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.onPose
}

func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("MQTT connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Println("MQTT reconnecting...")
}

// createMessageHandler decodes a peer snapshot and merges it into the grid.
// Snapshots carrying our own agent ID are echoes and are dropped.
func (c *MQTTClient) createMessageHandler(peerID string, confidence float64) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()

		snap, err := DecodeSnapshot(payload)
		if err != nil {
			log.Printf("Error decoding snapshot from %s (topic: %s, size: %d bytes): %v",
				peerID, msg.Topic(), len(payload), err)
			c.notify(peerID, nil, err)
			return
		}

		if snap.AgentID != "" && snap.AgentID == c.config.AgentID {
			return
		}

		if err := c.grid.MergeSnapshot(snap, confidence); err != nil {
			log.Printf("Dropping snapshot from %s: %v", peerID, err)
			c.notify(peerID, snap, err)
			return
		}

		c.mu.Lock()
		c.merged[peerID]++
		c.mu.Unlock()

		log.Printf("Merged %dx%d snapshot from %s (confidence %.2f)",
			snap.Width, snap.Height, peerID, confidence)
		c.notify(peerID, snap, nil)
	}
}

func (c *MQTTClient) notify(peerID string, snap *GridSnapshot, err error) {
	if c.onSnapshot != nil {
		c.onSnapshot(peerID, snap, err)
	}
}

// MergedCount returns how many snapshots from peerID have been merged
func (c *MQTTClient) MergedCount(peerID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.merged[peerID]
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("Disconnecting from MQTT broker...")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// GetPeerByTopic returns the peer ID subscribed on topic
func (c *MQTTClient) GetPeerByTopic(topic string) (string, bool) {
	for _, peer := range c.config.Peers {
		if peer.Topic == topic {
			return peer.ID, true
		}
	}
	return "", false
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// newMQTTClientWithMock creates an MQTTClient around a provided mqtt.Client
func newMQTTClientWithMock(client mqtt.Client, config *Config, grid *GridMap, handler SnapshotHandler) *MQTTClient {
	return &MQTTClient{
		client:     client,
		config:     config,
		grid:       grid,
		onSnapshot: handler,
		merged:     make(map[string]int),
	}
}
