package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"golang.org/x/sync/errgroup"

	fmapi "github.com/norasector/fmlive/pkg/api"
	"github.com/norasector/fmlive/pkg/audio"
	"github.com/norasector/fmlive/pkg/dsp/demodulators/wbfm"
	"github.com/norasector/fmlive/pkg/receiver"
	"github.com/norasector/fmlive/pkg/receiver/config"
	"github.com/norasector/fmlive/pkg/receiver/device"
	"github.com/norasector/fmlive/pkg/receiver/device/dispatch"
	"github.com/norasector/fmlive/pkg/receiver/device/hackrf"
	"github.com/norasector/fmlive/pkg/receiver/device/libhackrf"
	"github.com/norasector/fmlive/pkg/receiver/device/rtlsdr"
	"github.com/norasector/fmlive/pkg/receiver/output"
	"github.com/norasector/fmlive/pkg/usb"
	"github.com/norasector/fmlive/pkg/util"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)
	configFile := flag.String("config", "fmlive.yaml", "YAML config file")

	flag.Parse()

	configContents, err := os.ReadFile(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("error reading config file")
	}
	var opts config.Config
	if err := yaml.Unmarshal(configContents, &opts); err != nil {
		log.Fatal().Err(err).Msg("error unmarshaling yaml file")
	}
	if err := opts.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	level, _ := zerolog.ParseLevel(opts.LogLevel)
	log.Logger = log.Logger.Level(level)

	radio, err := openRadio(&opts)
	if err != nil {
		log.Fatal().Str("device", opts.Device).Str("backend", opts.Backend).Err(err).Msg("failed to initialize device")
	}
	defer radio.Close()

	if err := configureRadio(radio, &opts); err != nil {
		log.Fatal().Err(err).Msg("failed to configure device")
	}

	var writeAPI api.WriteAPI = &util.MockWriteAPI{}
	if opts.InfluxDB.Host != "" {
		client := influxdb2.NewClient(opts.InfluxDB.Host, "")
		defer client.Close()
		writeAPI = client.WriteAPI(opts.InfluxDB.Organization, opts.InfluxDB.Bucket)
	}

	demodOpts := []wbfm.Option{
		wbfm.WithTuningOffset(opts.TuningOffset),
		wbfm.WithDeemphasis(opts.DeemphasisTau()),
		wbfm.WithLogger(log.Logger),
	}
	if opts.Audio.AGC {
		demodOpts = append(demodOpts, wbfm.WithAGC())
	}

	session := audio.NewSession(opts.Audio.SampleRate,
		audio.WithRingCapacity(opts.Audio.RingCapacity),
		audio.WithLogger(log.Logger))
	if err := session.AttachDemodulator(wbfm.New(demodOpts...)); err != nil {
		log.Fatal().Err(err).Msg("failed to attach demodulator")
	}

	outputs, closeOutputs, err := buildOutputs(&opts, writeAPI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create outputs")
	}
	defer closeOutputs()

	rcvOpts := []receiver.ReceiverOption{
		receiver.WithInfluxDB(writeAPI),
		receiver.WithOutputs(outputs...),
		receiver.WithLogger(log.Logger),
	}
	if opts.StreamID != 0 {
		rcvOpts = append(rcvOpts, receiver.WithStreamID(opts.StreamID))
	}
	rcv, err := receiver.NewReceiver(radio, session, opts.SampleRate, rcvOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create receiver")
	}

	eg, ctx := errgroup.WithContext(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	eg.Go(func() error {
		select {
		case <-sigChan:
		case <-ctx.Done():
		}

		return rcv.Stop()
	})

	eg.Go(func() error {
		return rcv.Start(ctx)
	})

	if !opts.Audio.Disable {
		player := audio.NewPlayer(session,
			audio.WithBlockSize(opts.Audio.BlockSize),
			audio.WithDeviceIndex(opts.AudioDeviceIndex()),
			audio.WithPlayerLogger(log.Logger))
		eg.Go(func() error {
			return player.Run(ctx)
		})
	}

	if opts.ControlServer.Port != 0 {
		srv := fmapi.NewServer(opts.ControlServer.Port, radio,
			fmapi.WithStats(rcv),
			fmapi.WithLogger(log.Logger))
		eg.Go(func() error {
			return srv.Run(ctx)
		})
	}

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("exited program")
	}
}

func openRadio(opts *config.Config) (device.Radio, error) {
	kind, err := device.ParseKind(opts.Device)
	if err != nil {
		return nil, err
	}
	if kind == device.KindRTLSDR {
		log.Info().Str("device", "rtlsdr").Msg("initializing device...")
		r := rtlsdr.NewRTLSDRDevice()
		if err := r.Setup(); err != nil {
			return nil, err
		}
		return r, nil
	}

	switch opts.Backend {
	case config.BackendReplay:
		log.Info().Str("device", "replay").Str("path", opts.PlaybackLocation).Msg("initializing device...")
		// Captures are CS8, two bytes per sample.
		transport := usb.NewReplayTransport(opts.PlaybackLocation, opts.SampleRate*2,
			usb.WithLoop(),
			usb.WithControlResponder(hackrf.EmulatedControlIn))
		return hackrf.Connect(transport, hackrf.WithLogger(log.Logger))

	case config.BackendLibHackRF:
		log.Info().Str("device", "libhackrf").Msg("initializing device...")
		var devOpts []libhackrf.Option
		if opts.RecordLocation != "" {
			devOpts = append(devOpts, libhackrf.WithRecording(opts.RecordLocation))
		}
		devOpts = append(devOpts, libhackrf.WithLogger(log.Logger))
		dev, err := libhackrf.NewHackRFDevice(devOpts...)
		if err != nil {
			return nil, err
		}
		if err := dev.Setup(); err != nil {
			dev.Close()
			return nil, err
		}
		return dev, nil

	default:
		log.Info().Str("device", "usb").Msg("initializing device...")
		transport := usb.NewGousbTransport(device.SupportedIDs(), usb.WithLogger(log.Logger))
		radio, kind, err := dispatch.Connect(transport, hackrf.WithLogger(log.Logger))
		if err != nil {
			return nil, err
		}
		log.Info().Stringer("usb_id", transport.Matched()).Stringer("kind", kind).Msg("connected")
		return radio, nil
	}
}

func configureRadio(radio device.Radio, opts *config.Config) error {
	if err := radio.SetSampleRate(uint32(opts.SampleRate)); err != nil {
		return err
	}
	if err := radio.SetFrequency(uint64(opts.CenterFrequency())); err != nil {
		return err
	}

	if gc, ok := radio.(device.GainController); ok {
		if err := gc.SetLNAGain(uint8(opts.LNAGain)); err != nil {
			return err
		}
		if err := gc.SetVGAGain(uint8(opts.VGAGain)); err != nil {
			return err
		}
		if err := gc.SetAmpEnable(opts.AmpEnable); err != nil {
			return err
		}
		if opts.AntennaEnable {
			if err := gc.SetAntennaEnable(true); err != nil {
				return err
			}
		}
	}

	if d, ok := radio.(device.Describer); ok {
		info, err := d.Info()
		if err != nil {
			log.Warn().Err(err).Msg("could not read board info")
		} else {
			log.Info().
				Str("board", info.Board).
				Str("version", info.Version).
				Uints32("serial_no", info.SerialNo).
				Msg("board")
		}
		cfg := d.Config()
		log.Info().
			Str("frequency", util.MHzToString(int(cfg.FrequencyHz))).
			Int("tuning_offset", opts.TuningOffset).
			Uint32("baseband_filter", cfg.BasebandFilterHz).
			Uint8("lna_gain", cfg.LNAGainDB).
			Uint8("vga_gain", cfg.VGAGainDB).
			Msg("device configured")
	}
	return nil
}

func buildOutputs(opts *config.Config, writeAPI api.WriteAPI) ([]output.AudioOutput, func(), error) {
	var outputs []output.AudioOutput
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			c.Close()
		}
	}

	if len(opts.Outputs) > 0 {
		outputs = append(outputs, output.NewOpusUDPOutput(opts.Outputs, opts.Audio.SampleRate, opts.StreamID, writeAPI))
	}
	if opts.Audio.RecordLocation != "" {
		outputs = append(outputs, output.NewWAVRecorder(opts.Audio.RecordLocation, opts.Audio.SampleRate))
	}
	if opts.Audio.PCMLocation != "" {
		var dest io.Writer = os.Stdout
		if opts.Audio.PCMLocation != "-" {
			f, err := os.Create(opts.Audio.PCMLocation)
			if err != nil {
				return nil, closeAll, err
			}
			closers = append(closers, f)
			dest = f
		}
		outputs = append(outputs, output.NewPCMOutput(dest))
	}
	return outputs, closeAll, nil
}
