// Copyright 2023 Meta Platforms, Inc. and affiliates.
//
// Redistribution and use in source and binary forms, with or without modification, are permitted provided that the following conditions are met:
//
// 1. Redistributions of source code must retain the above copyright notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright notice, this list of conditions and the following disclaimer in the documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its contributors may be used to endorse or promote products derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/facebookincubator/go-belt/beltctx"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"

	"github.com/immune-gmbh/firmware-publisher/pkg/config"
	"github.com/immune-gmbh/firmware-publisher/pkg/objcache"
	"github.com/immune-gmbh/firmware-publisher/pkg/observability"
	"github.com/immune-gmbh/firmware-publisher/pkg/publish"
	"github.com/immune-gmbh/firmware-publisher/pkg/releasestore"
	"github.com/immune-gmbh/firmware-publisher/pkg/server"
)

func main() {
	cfg, err := config.Parse(os.Args[1:], os.Getenv)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2) // The default Go's exitcode on flag.Parse() problems
	}

	ctx, cancelFn := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancelFn()
	ctx = observability.WithBelt(ctx, cfg.LogLevel.Level, cfg.LogFormat, "fwpublishd", true)
	defer beltctx.Flush(ctx)

	log := logger.FromCtx(ctx)

	if cfg.NetPprofAddr != "" {
		go func() {
			err := http.ListenAndServe(cfg.NetPprofAddr, nil)
			log.Errorf("unable to start listening for https/net/pprof: %v", err)
		}()
	}

	stor, closeStorage, err := newStore(ctx, cfg)
	if err != nil {
		log.Panic(err)
	}
	defer func() {
		if err := closeStorage(); err != nil {
			log.Errorf("unable to close the storage: %v", err)
		}
	}()

	if cfg.AuthToken == "" {
		log.Warnf("%s is not set, anybody is allowed to publish firmware", config.EnvAuthToken)
	}
	endpoint := publish.New(stor,
		publish.OptionAuthToken(cfg.AuthToken),
		publish.OptionMaxUploadSize(cfg.MaxUploadSize),
		publish.OptionUploadDir(cfg.UploadDir),
	)

	srv := server.NewServer(
		publish.NewRouter(endpoint),
		beltctx.Belt(ctx),
		cfg.LogLevel.Level,
		cfg.MaxConcurrentRequests,
		cfg.ShutdownTimeout,
	)
	log.Debugf("created an HTTP server")

	if err := srv.Serve(ctx, cfg.ListenAddr); err != nil {
		log.Errorf("%v", err)
	}
}

// newStore opens the storage configured by the URL and puts a cache in front of it.
func newStore(ctx context.Context, cfg config.Config) (releasestore.Store, func() error, error) {
	log := logger.FromCtx(ctx)

	backend, err := releasestore.New(cfg.StorageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open storage '%s': %w", cfg.StorageURL, err)
	}
	if cfg.CacheSize == 0 {
		return backend, backend.Close, nil
	}

	cache, err := objcache.New(cfg.CacheSize)
	if err != nil {
		backend.Close()
		return nil, nil, fmt.Errorf("unable to initialize the cache: %w", err)
	}
	cached := releasestore.NewCached(backend, cache)

	if watcher, ok := backend.(releasestore.Watcher); ok && cfg.WatchStorage {
		err := watcher.Watch(ctx, func(fileName string) {
			log.Debugf("'%s' is changed, dropping the cache", fileName)
			cached.Invalidate()
		})
		if err != nil {
			log.Warnf("unable to watch the storage, external changes will be served with a delay: %v", err)
		}
	}

	closeFn := func() error {
		var result *multierror.Error
		if err := cached.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		if err := cache.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		return result.ErrorOrNil()
	}
	return cached, closeFn, nil
}
