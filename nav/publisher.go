package nav

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// PoseMessage is the payload published on {prefix}/{agentID}/pose
type PoseMessage struct {
	AgentID   string  `json:"agentId"`
	MessageID string  `json:"messageId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Theta     float64 `json:"theta"`
	Status    string  `json:"status,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// PathMessage is the payload published on {prefix}/{agentID}/path
type PathMessage struct {
	AgentID   string `json:"agentId"`
	MessageID string `json:"messageId"`
	Waypoints Path   `json:"waypoints"`
	Target    *Point `json:"target,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Publisher publishes this agent's grid, pose and path to MQTT
type Publisher struct {
	client        mqtt.Client
	agentID       string
	publishPrefix string
	qos           byte
	retain        bool
	lastPose      *PoseMessage
	published     int
	mu            sync.RWMutex
}

// NewPublisher creates a publisher for agentID. The topic prefix comes from
// MQTT_PUBLISH_PREFIX, falling back to prefix and then "tudonav". If client
// is nil, publishing is disabled.
func NewPublisher(client mqtt.Client, agentID, prefix string) *Publisher {
	if env := os.Getenv("MQTT_PUBLISH_PREFIX"); env != "" {
		prefix = env
	}
	if prefix == "" {
		prefix = "tudonav"
	}

	return &Publisher{
		client:        client,
		agentID:       agentID,
		publishPrefix: prefix,
		qos:           0,    // fire and forget
		retain:        true, // late subscribers get the latest state
	}
}

// Topic returns the topic for kind ("grid", "pose" or "path")
func (p *Publisher) Topic(kind string) string {
	return GridTopic(p.publishPrefix, p.agentID, kind)
}

// GridTopic builds {prefix}/{agentID}/{kind}
func GridTopic(prefix, agentID, kind string) string {
	return fmt.Sprintf("%s/%s/%s", prefix, agentID, kind)
}

// PublishGrid publishes a compressed snapshot of g
func (p *Publisher) PublishGrid(g *GridMap) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	payload, err := EncodeSnapshot(g.Snapshot(p.agentID))
	if err != nil {
		return err
	}
	if err := p.publish(p.Topic("grid"), payload); err != nil {
		log.Printf("Error publishing grid for %s: %v", p.agentID, err)
		return err
	}
	return nil
}

// PublishPose publishes the robot pose and navigator status
func (p *Publisher) PublishPose(pose Pose, status NavigatorStatus) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}
	if !pose.Valid() {
		return fmt.Errorf("pose unavailable")
	}

	msg := &PoseMessage{
		AgentID:   p.agentID,
		MessageID: uuid.NewString(),
		X:         pose.X,
		Y:         pose.Y,
		Theta:     pose.Theta,
		Status:    status.String(),
		Timestamp: time.Now().Unix(),
	}

	p.mu.Lock()
	p.lastPose = msg
	p.mu.Unlock()

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling pose: %w", err)
	}
	return p.publish(p.Topic("pose"), payload)
}

// PublishPath publishes the path being followed and its target
func (p *Publisher) PublishPath(path Path, target *Point) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	msg := &PathMessage{
		AgentID:   p.agentID,
		MessageID: uuid.NewString(),
		Waypoints: path,
		Target:    target,
		Timestamp: time.Now().Unix(),
	}
	if msg.Waypoints == nil {
		msg.Waypoints = Path{}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling path: %w", err)
	}
	return p.publish(p.Topic("path"), payload)
}

func (p *Publisher) publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	p.mu.Lock()
	p.published++
	p.mu.Unlock()
	return nil
}

// LastPose returns the last pose published
func (p *Publisher) LastPose() (*PoseMessage, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.lastPose == nil {
		return nil, false
	}
	cp := *p.lastPose
	return &cp, true
}

// PublishedCount returns how many messages have been published
func (p *Publisher) PublishedCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.published
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages are retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
