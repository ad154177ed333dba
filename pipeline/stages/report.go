package stages

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/kbukum/assetflow/logger"
	"github.com/kbukum/assetflow/pipeline"
	"github.com/kbukum/assetflow/stream"
)

// SizeOptions configures the size report.
type SizeOptions struct {
	Title     string `mapstructure:"title"`
	ShowFiles bool   `mapstructure:"show_files"`
}

// NewSize builds the size stage, which logs the size of every record and a
// total once the stream is drained.
func NewSize(opts Options) (pipeline.Stage, error) {
	var o SizeOptions
	if err := Decode(opts, &o); err != nil {
		return nil, err
	}
	return Size(o), nil
}

// Size returns the size stage.
func Size(o SizeOptions) pipeline.Stage {
	return pipeline.NewStage("size", func(in *stream.Stream[pipeline.Record], env pipeline.Env) *stream.Stream[pipeline.Record] {
		log := env.Logger
		if log == nil {
			log = logger.Nop()
		}
		var total atomic.Int64
		tapped := stream.Tap(in, func(_ context.Context, rec pipeline.Record) error {
			total.Add(int64(rec.Len()))
			if o.ShowFiles {
				log.Info(o.Title+" "+rec.Path(), logger.Fields("size", humanize.Bytes(uint64(rec.Len()))))
			}
			return nil
		})
		return stream.OnDone(tapped, func(_ context.Context, count int) error {
			log.Info(strings.TrimSpace(o.Title+" all files"), logger.Fields(
				logger.FieldRecords, count,
				"size", humanize.Bytes(uint64(total.Load())),
			))
			return nil
		})
	})
}

// NewNotify builds the notify stage, which logs Message once every record
// has passed.
func NewNotify(opts Options) (pipeline.Stage, error) {
	var o struct {
		Message string `mapstructure:"message"`
	}
	if err := Decode(opts, &o); err != nil {
		return nil, err
	}
	if o.Message == "" {
		return nil, errors.New("message is required")
	}
	return pipeline.NewStage("notify", func(in *stream.Stream[pipeline.Record], env pipeline.Env) *stream.Stream[pipeline.Record] {
		log := env.Logger
		if log == nil {
			log = logger.Nop()
		}
		return stream.OnDone(in, func(_ context.Context, count int) error {
			log.Info(o.Message, logger.Fields(logger.FieldRecords, count))
			return nil
		})
	}), nil
}
