package msg

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  WalletReq
		ok   bool
	}{
		{"address", WalletReq{Net: "eth", Type: ADDRESS, Obj: "0x01", Act: LISTEN}, true},
		{"contract", WalletReq{Net: "eth", Type: CONTRACT, Obj: "0x02", Act: UNLISTEN}, true},
		{"other net", WalletReq{Net: "btc", Type: ADDRESS, Obj: "0x01"}, false},
		{"bad type", WalletReq{Net: "eth", Type: 7, Obj: "0x01"}, false},
		{"no object", WalletReq{Net: "eth", Type: TX}, false},
		{"bad action", WalletReq{Net: "eth", Type: TX, Obj: "0x01", Act: 3}, false},
	}

	for _, c := range cases {
		err := c.req.Validate("eth")
		if c.ok {
			assert.NoError(t, err, c.name)
		} else {
			assert.ErrorIs(t, err, ErrBadRequest, c.name)
		}
	}
}

func TestAcquire(t *testing.T) {
	mut := new(sync.Mutex)
	done := make(chan struct{})

	assert.True(t, Acquire(done, mut))

	go func() {
		time.Sleep(20 * time.Millisecond)
		mut.Unlock()
	}()

	assert.True(t, Acquire(done, mut))

	close(done)
	assert.False(t, Acquire(done, mut))
}
