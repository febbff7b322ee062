package kvserver

import (
	"bufio"
	"context"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leishu-qiu/kvlined/pkg/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestNewBuildsContext(t *testing.T) {
	cfg := config.Default()
	kc := New(cfg)
	require.NotNil(t, kc.Index)
	require.NotNil(t, kc.Registry)
	require.NotNil(t, kc.Gate)
	require.NotNil(t, kc.Metrics)
	require.Equal(t, 0, kc.Registry.Count())
}

func TestRunServesOneClientOverTCP(t *testing.T) {
	cfg := config.Default()
	cfg.MetricsAddr = "127.0.0.1:" + strconv.Itoa(freePort(t))
	kc := New(cfg)
	port := freePort(t)

	operatorR, operatorW, err := os.Pipe()
	require.NoError(t, err)

	runDone := make(chan error, 1)
	go func() { runDone <- Run(context.Background(), port, kc, operatorR) }()

	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(port))
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("a foo bar\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "added\n", line)

	operatorW.Close() // EOF on the operator loop triggers shutdown
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the operator loop hit EOF")
	}
}
