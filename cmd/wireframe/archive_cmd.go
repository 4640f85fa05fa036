package main

import (
	"flag"
	"fmt"

	"github.com/aeolun/distcore/pkg/archive"
	"github.com/aeolun/distcore/pkg/config"
	"github.com/aeolun/distcore/pkg/envelope"
)

// envelopeConfigFrom folds the loaded config sections into the codec's
// Config.
func envelopeConfigFrom(cfg config.TOMLConfig) envelope.Config {
	return envelope.Config{
		Serializers:               cfg.Envelope.Serializers,
		AllowedSerializers:        cfg.Envelope.AllowedSerializers,
		OnError:                   envelope.OnError(cfg.Envelope.OnError),
		MinCompressSize:           cfg.Compression.MinCompressSizeBytes(),
		CompressionRatioThreshold: cfg.Compression.RatioThreshold,
		SplitThreshold:            cfg.Envelope.SplitThresholdBytes(),
		DefaultCompression:        cfg.Compression.DefaultCodec,
	}
}

func runArchive(args []string) error {
	fs := flag.NewFlagSet("archive", flag.ExitOnError)
	configPath := fs.String("config", "~/.distcore/config.toml", "Path to config file")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: wireframe archive <record|replay|list> [id] [text]")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	store, err := archive.Open(cfg.Archive.DatabasePathExpanded())
	if err != nil {
		return err
	}
	defer store.Close()

	envCfg := envelopeConfigFrom(cfg)

	switch fs.Arg(0) {
	case "record":
		if fs.NArg() < 3 {
			return fmt.Errorf("usage: wireframe archive record <id> <text>")
		}
		id, text := fs.Arg(1), fs.Arg(2)
		frames, err := envelope.Dumps(map[string]any{"text": text}, envCfg)
		if err != nil {
			return err
		}
		if err := store.Record(id, frames); err != nil {
			return err
		}
		fmt.Printf("recorded %q (%d frames)\n", id, len(frames))
		return nil

	case "replay":
		if fs.NArg() < 2 {
			return fmt.Errorf("usage: wireframe archive replay <id>")
		}
		id := fs.Arg(1)
		frames, err := store.Replay(id)
		if err != nil {
			return err
		}
		v, err := envelope.Loads(frames, true, envCfg)
		if err != nil {
			return err
		}
		fmt.Printf("%#v\n", v)
		return nil

	case "list":
		ids, err := store.List()
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil

	default:
		return fmt.Errorf("unknown archive subcommand %q", fs.Arg(0))
	}
}
