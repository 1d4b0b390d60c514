package service

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"preclear/internal/compliance"
	"preclear/internal/platform/logger"
	"preclear/internal/platform/objectstore"
	"preclear/internal/shipment/metrics"
	"preclear/internal/shipment/models"
	"preclear/internal/shipment/service/mocks"
	shipmentstore "preclear/internal/shipment/store/shipment"
	tokenstore "preclear/internal/shipment/store/token"
	"preclear/pkg/platform/audit"
	auditmem "preclear/pkg/platform/audit/store/memory"
	"preclear/pkg/platform/tx"
)

// TestEvaluationUsesActiveRules verifies the evaluator receives the dynamic
// rule set for the destination and that a Blocked verdict lands the shipment
// in requires_resolution.
func TestEvaluationUsesActiveRules(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	evaluator := mocks.NewMockEvaluator(ctrl)
	rules := mocks.NewMockRuleProvider(ctrl)

	svc := New(
		shipmentstore.NewInMemory(),
		tokenstore.NewInMemory(),
		objectstore.NewMemory(),
		evaluator,
		rules,
		audit.NewPublisher(auditmem.New(), logger.NewNop()),
		tx.NoopRunner{},
		metrics.New(prometheus.NewRegistry()),
		logger.NewNop(),
		nil,
		Config{AiScoreCutoff: 90, PreclearTokenTTL: time.Hour},
	)

	detail := &models.ShipmentDetail{
		Shipment: models.Shipment{
			Name:         "Arms crate",
			Mode:         models.ModeSea,
			ShipmentType: models.TypeInternational,
		},
		Parties: []models.Party{
			{PartyType: models.PartyShipper, ContactName: "Sender", CountryCode: "US"},
			{PartyType: models.PartyConsignee, ContactName: "Receiver", CountryCode: "IN"},
		},
		Items: []models.Item{{Description: "Rifle parts", HSCode: "9301.10", Quantity: 2}},
	}
	created, err := svc.Create(t.Context(), detail)
	require.NoError(t, err)

	activeRules := []compliance.Rule{{Code: "IN-BAN-02", Country: "IN", Restricted: true}}
	rules.EXPECT().ActiveRules(gomock.Any(), "IN").Return(activeRules, nil)
	evaluator.EXPECT().
		Evaluate(gomock.Any(), 90).
		DoAndReturn(func(input compliance.Input, _ int) compliance.Result {
			require.Equal(t, activeRules, input.Rules)
			require.Equal(t, "US", input.OriginCountry)
			return compliance.Result{
				Status:     compliance.StatusBlocked,
				RiskLevel:  compliance.RiskHigh,
				Score:      45,
				Restricted: true,
			}
		})

	evaluated, err := svc.RequestAiEvaluation(t.Context(), created.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusRequiresResolution, evaluated.Status)
	require.Equal(t, compliance.StatusBlocked, evaluated.Compliance.AiStatus)
	require.True(t, evaluated.Compliance.Restricted)
}
