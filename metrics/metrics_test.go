package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/nanoncore/nano-switchctrl/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestResult(t *testing.T) {
	assert.Equal(t, "success", Result(nil))
	assert.Equal(t, "timeout", Result(types.Errorf(types.KindTimeout, "read", "no prompt")))
	assert.Equal(t, "reply-failure", Result(types.Failure("denied").Err(types.OpCommit)))
	assert.Equal(t, "error", Result(errors.New("plain")))
}

func TestObserveTransaction(t *testing.T) {
	c := transactionsTotal.WithLabelValues("dell", "create-vlan", "transport")
	before := testutil.ToFloat64(c)

	ObserveTransaction(types.VendorDell, types.OpCreateVLAN, types.ErrTransport, time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestRefTableRebuilt(t *testing.T) {
	c := refTableRebuilds.WithLabelValues("ex-1", "port", "success")
	before := testutil.ToFloat64(c)

	RefTableRebuilt("ex-1", "port", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}
