package bootstrap

import (
	"crosstalk/internal/audio"
	"crosstalk/internal/config"
	"crosstalk/internal/logging"
	"crosstalk/internal/negotiate"
	"crosstalk/internal/ports"
	"crosstalk/internal/rtc"
	"crosstalk/internal/store"
	"crosstalk/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.CallController
	Config     config.Config
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	negotiator := negotiate.New(negotiate.Config{
		APIKey:  cfg.Realtime.APIKey,
		APIBase: cfg.Realtime.APIBase,
		Model:   cfg.Realtime.Model,
	})

	peers := rtc.NewManager(
		rtc.Config{
			SignalURL: cfg.Realtime.APIBase + "/realtime/calls",
			Model:     cfg.Realtime.Model,
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			GatherTimeout: cfg.Session.GatherTimeout,
		},
		audio.NewFFMPEGCapture(cfg.Audio.CaptureCommand),
		audio.NewFFPlayPlayback(cfg.Audio.PlaybackCommand),
	)

	calls := store.NewClient(store.Config{
		BaseURL:   cfg.Data.BaseURL,
		AuthToken: cfg.Data.AuthToken,
		Timeout:   cfg.Data.Timeout,
	})

	controller := usecase.NewCallController(
		negotiator,
		peers,
		calls,
		eventSink,
		usecase.Config{Voice: cfg.Realtime.Voice},
	)

	return Services{Controller: controller, Config: cfg}, nil
}
