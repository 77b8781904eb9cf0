// Command noisexx-handshake drives a complete Noise_XX_25519_ChaChaPoly_BLAKE2s
// handshake between an initiator and a responder connected over an
// in-memory net.Pipe, then exercises the resulting Transport with a few
// round trips. It exists to demonstrate the noise package end to end; the
// socket, framing, and process-lifecycle code below is demo plumbing, not
// part of the library.
package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stp-noise/noisexx"
	"github.com/stp-noise/noisexx/config"
	"github.com/stp-noise/noisexx/internal/logging"
	"github.com/stp-noise/noisexx/internal/replay"
)

func main() {
	var initiatorCfgPath, responderCfgPath string
	var logLevel string
	flag.StringVar(&initiatorCfgPath, "initiator-config", "", "Path to the initiator's config file (or '-' for stdin); omit to use generated keys")
	flag.StringVar(&responderCfgPath, "responder-config", "", "Path to the responder's config file; omit to use generated keys")
	flag.StringVar(&logLevel, "log-level", "info", "Log level override (debug/info/warn/error)")
	flag.Parse()

	baseLogger := logging.New(logging.ParseLevel(logLevel), os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initiatorCfg, err := loadOrDefault(initiatorCfgPath, "initiator")
	if err != nil {
		log.Fatalf("failed to load initiator config: %v", err)
	}
	responderCfg, err := loadOrDefault(responderCfgPath, "responder")
	if err != nil {
		log.Fatalf("failed to load responder config: %v", err)
	}

	levelFlagSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "log-level" {
			levelFlagSet = true
		}
	})
	if !levelFlagSet && initiatorCfg.Logging.Level != "" {
		baseLogger.SetLevel(logging.ParseLevel(initiatorCfg.NormalisedLevel()))
	}
	componentLogger := baseLogger.With(map[string]interface{}{"component": "noisexx-handshake"})

	initiatorStatic, err := keyForRole(initiatorCfg, initiatorCfgPath)
	if err != nil {
		log.Fatalf("failed to load initiator static key: %v", err)
	}
	responderStatic, err := keyForRole(responderCfg, responderCfgPath)
	if err != nil {
		log.Fatalf("failed to load responder static key: %v", err)
	}

	initiatorProlog, err := initiatorCfg.PrologueBytes()
	if err != nil {
		log.Fatalf("bad initiator prologue: %v", err)
	}
	responderProlog, err := responderCfg.PrologueBytes()
	if err != nil {
		log.Fatalf("bad responder prologue: %v", err)
	}

	initConn, respConn := net.Pipe()
	defer initConn.Close()
	defer respConn.Close()

	done := make(chan error, 2)

	go func() {
		logger := componentLogger.With(map[string]interface{}{"role": "initiator"})
		done <- runInitiator(ctx, initConn, logger, initiatorStatic, initiatorProlog, initiatorCfg)
	}()
	go func() {
		logger := componentLogger.With(map[string]interface{}{"role": "responder"})
		done <- runResponder(ctx, respConn, logger, responderStatic, responderProlog, responderCfg)
	}()

	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			componentLogger.Error("session failed", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
	}
	componentLogger.Info("handshake demo completed", nil)
}

func loadOrDefault(path, role string) (*config.Config, error) {
	if path == "" {
		return &config.Config{Role: role, Logging: config.LoggingConfig{Level: "info", Output: "stdout"}}, nil
	}
	return config.Load(path)
}

func keyForRole(cfg *config.Config, path string) ([32]byte, error) {
	if path == "" || cfg.StaticKeyFile == "" {
		return generateScalar()
	}
	return config.LoadStaticKey(cfg.StaticKeyFile)
}

func generateScalar() ([32]byte, error) {
	var k [32]byte
	if _, err := rand.Read(k[:]); err != nil {
		return k, fmt.Errorf("generate static key: %w", err)
	}
	return k, nil
}

func runInitiator(ctx context.Context, conn net.Conn, logger *logging.Logger, static [32]byte, prologue []byte, cfg *config.Config) error {
	ephemeral, err := generateScalar()
	if err != nil {
		return err
	}
	hs := noise.Init(ephemeral, static, prologue)
	logger.Info("handshake starting", nil)

	if err := writeHandshakeMessage(conn, hs, []byte(cfg.Payloads.Message1)); err != nil {
		return fmt.Errorf("write message 1: %w", err)
	}
	if _, err := readHandshakeMessage(conn, hs); err != nil {
		return fmt.Errorf("read message 2: %w", err)
	}
	if err := writeHandshakeMessage(conn, hs, []byte(cfg.Payloads.Message3)); err != nil {
		return fmt.Errorf("write message 3: %w", err)
	}

	transport, err := hs.Upgrade()
	if err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}
	logger.Info("handshake complete", map[string]interface{}{"remoteKey": fmt.Sprintf("%x", transport.RemoteKey())})

	if cfg.Transport.ReplayGuard {
		transport.WithReplayWindow(replay.New(replay.DefaultWindowSize))
	}
	return exchangeTransport(ctx, conn, logger, transport, cfg)
}

func runResponder(ctx context.Context, conn net.Conn, logger *logging.Logger, static [32]byte, prologue []byte, cfg *config.Config) error {
	ephemeral, err := generateScalar()
	if err != nil {
		return err
	}
	hs := noise.Resp(ephemeral, static, prologue)
	logger.Info("handshake starting", nil)

	if _, err := readHandshakeMessage(conn, hs); err != nil {
		return fmt.Errorf("read message 1: %w", err)
	}
	if err := writeHandshakeMessage(conn, hs, []byte(cfg.Payloads.Message2)); err != nil {
		return fmt.Errorf("write message 2: %w", err)
	}
	if _, err := readHandshakeMessage(conn, hs); err != nil {
		return fmt.Errorf("read message 3: %w", err)
	}

	transport, err := hs.Upgrade()
	if err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}
	logger.Info("handshake complete", map[string]interface{}{"remoteKey": fmt.Sprintf("%x", transport.RemoteKey())})

	if cfg.Transport.ReplayGuard {
		transport.WithReplayWindow(replay.New(replay.DefaultWindowSize))
	}
	return exchangeTransport(ctx, conn, logger, transport, cfg)
}

// exchangeTransport alternates sending and receiving a handful of
// application messages to prove the upgraded Transport works in both
// directions; the initiator speaks on even turns, the responder on odd.
func exchangeTransport(ctx context.Context, conn net.Conn, logger *logging.Logger, t *noise.Transport, cfg *config.Config) error {
	payload := []byte(cfg.Payloads.Transport)
	if len(payload) == 0 {
		payload = []byte("noisexx transport demo payload")
	}

	for i := 0; i < cfg.EffectiveRoundTrips(); i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		buf := make([]byte, len(payload)+noise.TagLen)
		n, err := t.WriteMessage(payload, buf)
		if err != nil {
			return fmt.Errorf("transport write %d: %w", i, err)
		}
		if err := writeFrame(conn, buf[:n]); err != nil {
			return fmt.Errorf("send frame %d: %w", i, err)
		}

		frame, err := readFrame(conn)
		if err != nil {
			return fmt.Errorf("recv frame %d: %w", i, err)
		}
		out := make([]byte, len(frame))
		m, err := t.ReadMessage(frame, out)
		if err != nil {
			return fmt.Errorf("transport read %d: %w", i, err)
		}
		logger.Debug("round trip complete", map[string]interface{}{
			"index":     i,
			"sendNonce": t.SendNonce(),
			"recvNonce": t.RecvNonce(),
			"payload":   string(out[:m]),
		})
	}
	return nil
}

func writeHandshakeMessage(conn net.Conn, hs *noise.Handshake, payload []byte) error {
	buf := make([]byte, 256)
	n, err := hs.WriteMessage(payload, buf)
	if err != nil {
		return err
	}
	return writeFrame(conn, buf[:n])
}

func readHandshakeMessage(conn net.Conn, hs *noise.Handshake) ([]byte, error) {
	frame, err := readFrame(conn)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(frame))
	n, err := hs.ReadMessage(frame, out)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

func writeFrame(conn net.Conn, data []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if err := conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := conn.Write(data)
	return err
}

func readFrame(conn net.Conn) ([]byte, error) {
	var lenBuf [4]byte
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}
	data := make([]byte, binary.BigEndian.Uint32(lenBuf[:]))
	if _, err := io.ReadFull(conn, data); err != nil {
		return nil, err
	}
	return data, nil
}
