package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sushantdhakal00/discord-bot/internal/bot"
	"github.com/sushantdhakal00/discord-bot/internal/chain"
	"github.com/sushantdhakal00/discord-bot/internal/config"
	"github.com/sushantdhakal00/discord-bot/internal/cooldown"
	"github.com/sushantdhakal00/discord-bot/internal/feed"
	"github.com/sushantdhakal00/discord-bot/internal/handlers"
	"github.com/sushantdhakal00/discord-bot/internal/loans"
	"github.com/sushantdhakal00/discord-bot/internal/logger"
	"github.com/sushantdhakal00/discord-bot/internal/middleware"
	"github.com/sushantdhakal00/discord-bot/internal/pools"
	"github.com/sushantdhakal00/discord-bot/internal/provable"
	"github.com/sushantdhakal00/discord-bot/internal/rates"
	"github.com/sushantdhakal00/discord-bot/internal/store"
	"github.com/sushantdhakal00/discord-bot/internal/tictactoe"
	"github.com/sushantdhakal00/discord-bot/internal/wager"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init()
	zlog := logger.Log
	defer zlog.Sync()

	s, err := store.Open(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal("open store", zap.Error(err))
	}
	defer s.Close()

	// Redis is optional; cooldowns fail open and the price cache falls back
	// to its in-process copy without it.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer rdb.Close()
	}

	rpc := chain.NewRPC(cfg.SolanaRPCURL)
	houseKey, err := chain.LoadKey(cfg.HouseWalletSecret)
	if err != nil {
		zlog.Fatal("load house wallet key", zap.Error(err))
	}
	houseAddr := chain.Address(houseKey)

	engine := provable.New(s)
	wagers := wager.New(s, engine, cfg.HouseUserID, cfg.HouseEdge)
	poolSvc := pools.New(s, cfg.HouseUserID, zlog)
	loanSvc := loans.New(s, cfg.HouseUserID, zlog)
	ttt := tictactoe.NewManager(s, cfg.HouseUserID, zlog)
	hub := feed.NewHub(zlog)
	rateSvc := rates.New(cfg.PriceFeedURL, rdb, cfg.PriceRefreshInterval, zlog)
	limiter := cooldown.New(rdb, zlog)

	reconciler := chain.NewReconciler(s, rpc, cfg.QCPerSOL, cfg.DepositPollInterval, zlog)
	reconciler.OnDeposit(func(userID int64, address string) {
		hub.Publish(feed.Event{Type: "deposit", UserID: userID, Detail: address})
	})
	sweeper := chain.NewSweeper(s, rpc, houseAddr, cfg.SweepInterval, cfg.SweepConcurrency, zlog)
	withdrawer := chain.NewWithdrawer(s, rpc, houseKey, cfg.QCPerSOL, zlog)

	b, err := bot.New(bot.Deps{
		Config:      cfg,
		Store:       s,
		Engine:      engine,
		Wagers:      wagers,
		Pools:       poolSvc,
		Loans:       loanSvc,
		TicTacToe:   ttt,
		ChainClient: rpc,
		Withdrawer:  withdrawer,
		Rates:       rateSvc,
		Limiter:     limiter,
		Hub:         hub,
		Log:         zlog,
	})
	if err != nil {
		zlog.Fatal("create bot", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go hub.Run(ctx)
	go reconciler.Run(ctx)
	go sweeper.Run(ctx)
	go poolSvc.RunLottery(ctx, cfg.LotteryTickInterval)
	go poolSvc.RunAirdrop(ctx, cfg.AirdropTickInterval)
	go poolSvc.RunBattle(ctx, cfg.BattleTickInterval)
	go loanSvc.Run(ctx, cfg.LoanSweepInterval)
	go rateSvc.Run(ctx, cfg.PriceRefreshInterval)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				ttt.SweepAbandoned(now, 10*time.Minute)
			}
		}
	}()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	api := handlers.NewAPI(s, hub, cfg.HouseUserID)
	api.Register(router, middleware.Auth(cfg.JWTSecret))

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		zlog.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Error("http server", zap.Error(err))
		}
	}()

	zlog.Info("starting bot",
		zap.String("house_wallet", houseAddr),
		zap.Float64("house_edge", cfg.HouseEdge))
	if err := b.Run(ctx); err != nil {
		zlog.Error("bot stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Error("http shutdown", zap.Error(err))
	}
}
