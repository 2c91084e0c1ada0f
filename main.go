package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"filebox/backend/api/middleware"
	"filebox/backend/api/route"
	"filebox/backend/common"
	"filebox/backend/common/i18n"
	"filebox/backend/model"
	"filebox/backend/service"

	"github.com/gin-gonic/gin"
)

func main() {
	flag.Parse()
	if *common.PrintVersion {
		println(common.Version)
		os.Exit(0)
	}
	if *common.PrintHelpFlag {
		common.PrintHelp()
		os.Exit(0)
	}
	if err := common.LoadConfig(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config: "+err.Error())
		os.Exit(1)
	}
	if err := common.SetupLogger(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	defer common.SyncLogger()
	common.SysLog(common.SystemName + " " + common.Version + " started")
	if common.LocalesDir != "" {
		if err := i18n.Init(common.LocalesDir); err != nil {
			common.FatalLog(err)
		}
	}
	if os.Getenv("GIN_MODE") != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Redis
	if err := common.InitRedisClient(); err != nil {
		common.FatalLog(err)
	}
	defer func() {
		if err := common.CloseRedisClient(); err != nil {
			common.SysError("close redis: " + err.Error())
		}
	}()

	// Initialize SQL Database
	if err := model.InitDB(); err != nil {
		common.FatalLog(err)
	}
	defer func() {
		if err := model.CloseDB(); err != nil {
			common.SysError("close database: " + err.Error())
		}
	}()

	// 上次进程退出时未完成的账户删除
	if n, err := service.ResumePendingDeletions(context.Background()); err != nil {
		common.SysError("resume pending deletions: " + err.Error())
	} else if n > 0 {
		common.SysLog(fmt.Sprintf("finished %d pending account deletions", n))
	}

	// Initialize HTTP server
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestId())
	engine.Use(middleware.RequestLogger())
	engine.Use(middleware.CORS())
	engine.Use(middleware.LangMiddleware())

	route.SetRouter(engine)
	engine.NoRoute(func(c *gin.Context) {
		common.RespErrorStr(c, http.StatusNotFound, "API route not found")
	})

	port := strconv.Itoa(*common.Port)
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		common.SysLog("Server listening on port: " + port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			common.FatalLog("failed to start server: " + err.Error())
		}
	}()

	<-ctx.Done()
	common.SysLog("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		common.SysError("server shutdown: " + err.Error())
	}
}
