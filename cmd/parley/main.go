package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"parley/internal/agent"
	"parley/internal/audio"
	"parley/internal/config"
	"parley/internal/loop"
	"parley/internal/notify"
	"parley/internal/proxy"
	"parley/internal/stt"
	"parley/internal/tts"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	cfgPath := cli.StringP("config", "c", config.DefaultPath, "Agent config path")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	proxyAddr := cli.StringP("proxy", "p", "", "SOCKS proxy address (optional)")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	echo := cli.Bool("echo", false, "Echo mode: test the loop without speech or LLM services")
	hi := cli.Bool("hi", false, "Send a single greeting turn to verify the agent config, then exit")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	godotenv.Load(*envFile)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Error("Failed to load config", "path", *cfgPath, "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *echo {
		runEcho(ctx)
		return
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Error("OPENAI_API_KEY not set")
		os.Exit(1)
	}

	var httpClient *http.Client
	if *proxyAddr != "" {
		httpClient, err = proxy.NewSocksClient(*proxyAddr)
		if err != nil {
			log.Error("Failed to dial socks proxy", "proxy", *proxyAddr, "err", err)
			os.Exit(1)
		}
		log.Debug("Loaded proxy")
	}

	speechOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	agentOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.BaseURL),
	}
	if httpClient != nil {
		speechOpts = append(speechOpts, option.WithHTTPClient(httpClient))
		agentOpts = append(agentOpts, option.WithHTTPClient(httpClient))
	}
	speechClient := openai.NewClient(speechOpts...)
	agentClient := openai.NewClient(agentOpts...)

	player, err := audio.NewPlayer()
	if err != nil {
		log.Error("Failed to init playback", "err", err)
		os.Exit(1)
	}

	rec, err := audio.NewRecorder()
	if err != nil {
		log.Error("Failed to init microphone", "err", err)
		os.Exit(1)
	}
	defer rec.Close()

	fmt.Fprintln(os.Stderr, "Calibrating ambient noise...")
	if err := rec.Calibrate(time.Second); err != nil {
		log.Warn("Calibration failed, using default threshold", "err", err)
	}

	probe(ctx, agentClient)

	session := agent.NewSession(agentClient, cfg)
	transcriber := stt.New(speechClient, rec, cfg.Speech)
	speaker := tts.New(speechClient, player, cfg.Speech)

	log.Info("Boot up - successful", "model", cfg.Model, "mic", rec.DeviceName())

	if *hi {
		runHi(ctx, session, speaker)
		return
	}

	fmt.Fprintln(os.Stderr, "Say 'thank you', 'exit' or 'quit' to stop.")

	ctrl := &loop.Controller{
		Transcriber: transcriber,
		Agent:       session,
		Speaker:     speaker,
		Notify:      notify.Chime,
	}
	if err := ctrl.Run(ctx); err != nil {
		log.Error("Conversation loop failed", "err", err)
		os.Exit(1)
	}
}

// runEcho wires the loop to the terminal only: no microphone, no speech
// services, no backend.
func runEcho(ctx context.Context) {
	fmt.Fprintln(os.Stderr, "Echo mode: type something and I'll repeat it back. Say 'quit' to exit.")

	ctrl := &loop.Controller{
		Transcriber: stt.NewConsole(os.Stdin, os.Stdout),
		Echo:        true,
	}
	if err := ctrl.Run(ctx); err != nil {
		log.Error("Echo loop failed", "err", err)
		os.Exit(1)
	}
}

// runHi dispatches a single canned turn so the operator can verify the
// config and the backend without talking.
func runHi(ctx context.Context, session *agent.Session, speaker *tts.Speaker) {
	reply, err := session.Send(ctx, "hi")
	if err != nil {
		log.Error("Greeting turn failed", "err", err)
		os.Exit(1)
	}
	fmt.Printf("%s\n", reply)
	if err := speaker.Speak(ctx, reply); err != nil {
		log.Warn("Synthesis failed", "err", err)
	}
}

// probe lists the backend's models, mirroring its connection check. A
// dead backend should fail at startup, not on the first spoken turn.
func probe(ctx context.Context, client openai.Client) {
	fmt.Fprint(os.Stderr, "Connecting...")
	page, err := client.Models.List(ctx)
	fmt.Fprint(os.Stderr, "\r\033[K")
	if err != nil {
		log.Error("Failed to reach agent backend", "err", err)
		os.Exit(1)
	}

	names := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		names = append(names, m.ID)
	}
	log.Debug("Connected to agent backend", "models", strings.Join(names, " "))
}
