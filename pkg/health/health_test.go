package health

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAggregatesWorstStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"all up", []Status{StatusUp, StatusUp}, StatusUp},
		{"one degraded", []Status{StatusUp, StatusDegraded}, StatusDegraded},
		{"one down", []Status{StatusDegraded, StatusDown, StatusUp}, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for i, s := range tt.statuses {
				s := s
				c.Register(string(rune('a'+i)), func(context.Context) ComponentHealth {
					return ComponentHealth{Status: s}
				})
			}
			report := c.Run(context.Background())
			assert.Equal(t, tt.want, report.Status)
			assert.Len(t, report.Components, len(tt.statuses))
		})
	}
}

func TestTCPCheck(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	up := TCPCheck(addr, StatusDown)(context.Background())
	assert.Equal(t, StatusUp, up.Status)

	ln.Close()
	down := TCPCheck(addr, StatusDegraded)(context.Background())
	assert.Equal(t, StatusDegraded, down.Status)
	assert.NotEmpty(t, down.Message)
}

func TestReportWriteJSON(t *testing.T) {
	c := NewChecker()
	c.Register("sink", Skipped("sink disabled"))
	var buf bytes.Buffer
	require.NoError(t, c.Run(context.Background()).WriteJSON(&buf))

	var decoded Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, StatusUp, decoded.Status)
	assert.Equal(t, "sink disabled", decoded.Components["sink"].Message)
}

func TestPingCheck(t *testing.T) {
	ok := PingCheck(func(context.Context) error { return nil }, StatusDown)
	assert.Equal(t, StatusUp, ok(context.Background()).Status)

	bad := PingCheck(func(context.Context) error { return errors.New("connection refused") }, StatusDegraded)
	res := bad(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, "connection refused", res.Message)
}
