package util

import (
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNetworkErrors(t *testing.T) {
	lsnr, lerr := net.Listen("tcp", "localhost:0")
	assert.NoError(t, lerr)

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := lsnr.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	conn, derr := net.Dial("tcp", lsnr.Addr().String())
	assert.NoError(t, derr)
	peer := <-accepted
	defer peer.Close()

	t.Run("timeout", func(tt *testing.T) {
		assert.NoError(tt, conn.SetReadDeadline(time.Now().Add(time.Millisecond)))
		_, err := conn.Read(make([]byte, 1))
		if assert.Error(tt, err) {
			assert.True(tt, IsNetworkTimeout(err))
			assert.False(tt, IsNetworkFailure(err))
		}
	})

	t.Run("closed", func(tt *testing.T) {
		conn.Close()
		_, err := conn.Write([]byte("Hi"))
		if assert.Error(tt, err) {
			assert.True(tt, IsNetworkFailure(err))
			assert.False(tt, IsNetworkTimeout(err))
		}
	})

	t.Run("refused", func(tt *testing.T) {
		addr := lsnr.Addr().String()
		lsnr.Close()
		_, err := net.DialTimeout("tcp", addr, time.Second)
		if assert.Error(tt, err) {
			assert.True(tt, IsNetworkFailure(err))
		}
	})

	assert.False(t, IsNetworkFailure(nil))
	assert.False(t, IsNetworkFailure(errors.New("other")))
	assert.True(t, IsNetworkFailure(fmt.Errorf("wrapped: %w", net.ErrClosed)))
}
