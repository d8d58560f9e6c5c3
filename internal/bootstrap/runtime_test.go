package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/config"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/fanout"
	"github.com/supportsphere/helpdesk/internal/gateway"
)

func memoryConfig(mode string) *config.Config {
	return &config.Config{
		Gateway:     config.GatewayConfig{Driver: config.GatewayMemory},
		ChangeFeed:  config.ChangeFeedConfig{Driver: config.ChangeFeedMemory},
		SideEffects: config.SideEffectsConfig{Mode: mode},
	}
}

func TestNewMemoryRuntimePublishesToHub(t *testing.T) {
	ctx := context.Background()
	rt, err := New(ctx, memoryConfig(config.SideEffectsDirect), nil, nil)
	require.NoError(t, err)
	defer rt.Close()

	assert.IsType(t, &fanout.Direct{}, rt.Recorder)

	sub, err := rt.Hub.Subscribe(ctx, changefeed.Topic{Table: changefeed.TableTickets})
	require.NoError(t, err)
	defer sub.Close()

	_, err = rt.Gateway.Tickets().Insert(ctx, gateway.TicketInsert{
		Title:       "Printer jam",
		Description: "Tray 2",
		Priority:    domain.TicketPriorityLow,
		Status:      domain.TicketStatusOpen,
		CreatedBy:   "u-1",
	})
	require.NoError(t, err)

	select {
	case <-sub.C:
	case <-time.After(time.Second):
		t.Fatal("expected a tickets signal")
	}
}

func TestNewSelectsOutboxRecorder(t *testing.T) {
	rt, err := New(context.Background(), memoryConfig(config.SideEffectsOutbox), nil, nil)
	require.NoError(t, err)
	defer rt.Close()

	assert.IsType(t, &fanout.Outbox{}, rt.Recorder)
}

func TestNewRejectsUnknownMode(t *testing.T) {
	_, err := New(context.Background(), memoryConfig("async"), nil, nil)
	assert.ErrorContains(t, err, "unknown side effects mode")
}

func TestStartWithoutRelaysReturns(t *testing.T) {
	rt, err := New(context.Background(), memoryConfig(config.SideEffectsDirect), nil, nil)
	require.NoError(t, err)
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	rt.Start(ctx)
	cancel()
	rt.Wait()
}

func TestNewFailsWhenRedisFeedIsUnreachable(t *testing.T) {
	cfg := memoryConfig(config.SideEffectsDirect)
	cfg.ChangeFeed.Driver = config.ChangeFeedRedis
	cfg.Redis = config.RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rt, err := New(ctx, cfg, nil, nil)
	assert.Nil(t, rt)
	assert.ErrorContains(t, err, "connect redis at 127.0.0.1:1")
}
