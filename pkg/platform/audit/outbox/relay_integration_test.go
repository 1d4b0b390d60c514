//go:build integration

package outbox_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"preclear/internal/platform/kafka"
	"preclear/internal/platform/logger"
	id "preclear/pkg/domain"
	"preclear/pkg/platform/audit"
	"preclear/pkg/platform/audit/outbox"
	auditpg "preclear/pkg/platform/audit/store/postgres"
	"preclear/pkg/testutil/containers"
)

const (
	approvalTopic = "preclear.approvals.test"
	auditTopic    = "preclear.audit.test"
)

type RelaySuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	redpanda  *containers.RedpandaContainer
	publisher *audit.Publisher
}

func TestRelaySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.redpanda = containers.NewRedpandaContainer(s.T())
	s.publisher = audit.NewPublisher(auditpg.New(s.postgres.DB), logger.NewNop())
}

type capture struct {
	messages chan *kafka.Message
}

func (c *capture) Handle(_ context.Context, msg *kafka.Message) error {
	c.messages <- msg
	return nil
}

// TestApprovalReachesKafka walks the full pipeline: approval append writes
// the log row and the outbox row in one transaction, the relay publishes the
// pending entry, and a group consumer receives it on the approval topic.
func (s *RelaySuite) TestApprovalReachesKafka() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	producer, err := kafka.NewProducer(ctx, []string{s.redpanda.Broker}, approvalTopic, auditTopic)
	s.Require().NoError(err)
	defer producer.Close()

	relay := outbox.NewRelay(s.postgres.DB, producer, approvalTopic, auditTopic, logger.NewNop())
	go func() { _ = relay.Run(ctx) }()

	consumer, err := kafka.NewConsumer([]string{s.redpanda.Broker}, "relay-test",
		[]string{approvalTopic}, logger.NewNop())
	s.Require().NoError(err)
	defer consumer.Close()

	sink := &capture{messages: make(chan *kafka.Message, 8)}
	go func() { _ = consumer.Run(ctx, sink) }()

	shipmentID := id.NewShipmentID()
	event := audit.ApprovalEvent{
		Entity:        audit.EntityShipment,
		EntityID:      shipmentID.String(),
		ApproverRole:  "broker",
		Action:        audit.ActionApprove,
		PreviousState: "pending_validation",
		NewState:      "pre_cleared",
		Comments:      "documents verified",
	}
	s.Require().NoError(s.publisher.EmitApproval(ctx, event))

	select {
	case msg := <-sink.messages:
		s.Equal(approvalTopic, msg.Topic)
		s.Equal(shipmentID.String(), string(msg.Key))

		var received audit.ApprovalEvent
		s.Require().NoError(json.Unmarshal(msg.Value, &received))
		s.Equal(audit.ActionApprove, received.Action)
		s.Equal("pre_cleared", received.NewState)
	case <-time.After(30 * time.Second):
		s.FailNow("approval event never reached kafka")
	}

	s.Require().Eventually(func() bool {
		var pending int
		err := s.postgres.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM audit_outbox WHERE published_at IS NULL`).Scan(&pending)
		return err == nil && pending == 0
	}, 10*time.Second, 250*time.Millisecond, "outbox entry never marked published")
}
