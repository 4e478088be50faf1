// Command skylink is the drone relay daemon.
//
// It connects to a Parrot Disco over its wifi link, fans flight telemetry
// and live video out to browser clients over WebRTC, and routes their
// permission-gated commands back to the drone. An operator HTTP API rides
// on the same listener as the signaling websocket.
//
// Usage:
//
//	skylink -config /etc/skylink/skylink.yaml
//	skylink -listen :8080 -no-drone
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/discofleet/skylink/pkg/api"
	"github.com/discofleet/skylink/pkg/auth"
	"github.com/discofleet/skylink/pkg/cache"
	"github.com/discofleet/skylink/pkg/config"
	"github.com/discofleet/skylink/pkg/drone"
	"github.com/discofleet/skylink/pkg/drone/disco"
	"github.com/discofleet/skylink/pkg/fanout"
	"github.com/discofleet/skylink/pkg/fleetmap"
	"github.com/discofleet/skylink/pkg/relay"
	"github.com/discofleet/skylink/pkg/router"
	"github.com/discofleet/skylink/pkg/security"
	"github.com/discofleet/skylink/pkg/session"
	"github.com/discofleet/skylink/pkg/stream"
	"github.com/discofleet/skylink/pkg/supervisor"
	"github.com/discofleet/skylink/pkg/telemetry"
	"github.com/discofleet/skylink/pkg/transport"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	listen := flag.String("listen", "", "override the HTTP listen address")
	droneAddr := flag.String("drone", "", "override the drone address")
	noDrone := flag.Bool("no-drone", false, "start without a vehicle link (UI only)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("skylink: %v", err)
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *droneAddr != "" {
		cfg.Drone.Address = *droneAddr
	}
	if *noDrone {
		cfg.Drone.NoDrone = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("skylink: %v", err)
	}
	log.Printf("skylink: stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	sessions := session.NewRegistry()
	out := fanout.New(sessions)
	flightCache := cache.New(cache.Defaults())

	catalog := auth.DefaultCatalog()
	if grants := cfg.Grants(); grants != nil {
		catalog = auth.NewCatalog(grants)
	}

	var vehicle drone.Client
	if cfg.Drone.NoDrone {
		log.Printf("skylink: no-drone mode, vehicle intents disabled")
		vehicle = drone.NewNoop()
	} else {
		vehicle = disco.New(disco.Config{Address: cfg.Drone.Address})
	}

	pipeline := stream.NewRTPPipeline(stream.Config{ListenAddr: cfg.Stream.Listen})

	var fleet telemetry.FleetPublisher
	if cfg.FleetMap.Enabled {
		publisher := fleetmap.New(fleetmap.Config{
			DroneID:   cfg.FleetMap.DroneID,
			BrokerURL: cfg.FleetMap.BrokerURL,
			CertFile:  cfg.FleetMap.CertFile,
			KeyFile:   cfg.FleetMap.KeyFile,
			CAFile:    cfg.FleetMap.CAFile,
		})
		if err := publisher.Connect(); err != nil {
			return err
		}
		defer publisher.Disconnect()
		fleet = publisher
	}

	rt := router.New(router.Config{
		PitchLimit:    cfg.Drone.PitchLimit,
		RollLimit:     cfg.Drone.RollLimit,
		ThrottleLimit: cfg.Drone.ThrottleLimit,
		NoDrone:       cfg.Drone.NoDrone,
	}, vehicle, sessions, flightCache, catalog, out)

	broadcaster := telemetry.New(telemetry.Config{
		ThrottleInterval: time.Duration(cfg.Telemetry.ThrottleMs) * time.Millisecond,
	}, flightCache, out, fleet)

	sup := supervisor.New(supervisor.Config{
		CancelRTHOnRecover: cfg.Drone.CancelRTHOnRecover,
	}, vehicle, pipeline, sessions, flightCache, out)

	rl := relay.New(vehicle, rt, broadcaster, sup, sessions, flightCache, pipeline, out)

	if !cfg.Drone.NoDrone {
		if err := vehicle.Connect(ctx); err != nil {
			return err
		}
		flightCache.Set(cache.KeyDroneConnected, true)

		if err := vehicle.MediaStreaming().EnableVideoStream(); err != nil {
			log.Printf("skylink: enable video stream: %v", err)
		}
		if err := pipeline.Start(ctx); err != nil {
			return err
		}
		defer pipeline.Stop()
	}

	signaling := transport.NewServer(transport.Config{}, transport.Handlers{
		OnConnect: func(id, ip string, peer *transport.Peer) {
			rl.HandleConnect(id, ip, peer)
		},
		OnMessage:    rl.HandleMessage,
		OnDisconnect: rl.HandleDisconnect,
	})

	server := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: api.NewServer(api.Config{FlightPlanDir: cfg.FlightPlanDir}, sessions, catalog, out, signaling),
	}
	if cfg.Server.CertFile != "" && cfg.Server.KeyFile != "" && cfg.Server.CAFile != "" {
		tlsCfg, err := security.ServerTLSConfig(cfg.Server.CertFile, cfg.Server.KeyFile, cfg.Server.CAFile)
		if err != nil {
			return err
		}
		server.TLSConfig = tlsCfg
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("skylink: listening on %s", cfg.Server.Listen)
		var err error
		if server.TLSConfig != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return rl.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
