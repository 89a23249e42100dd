// Command toolserver serves the finance tool catalog over HTTP so several
// backends can share one tool set.
package main

import (
	"flag"
	"log"
	"os"

	"finance-rag-be/internal/pkg/logger"
	"finance-rag-be/internal/pkg/serverutils"
	"finance-rag-be/pkg/tools"
	"finance-rag-be/pkg/tools/remote"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", envOr("TOOL_SERVER_ADDR", ":8001"), "listen address")
	flag.Parse()

	sysLogger := logger.NewZapLogger(envOr("LOG_FILE_PATH", "logs/toolserver.log"), os.Getenv("GO_ENV") == "production")
	defer sysLogger.Sync()

	app := fiber.New(fiber.Config{ErrorHandler: serverutils.ErrorHandler})
	app.Use(fiberlogger.New())
	remote.NewHandler(tools.NewFinanceRegistry()).RegisterRoutes(app)

	sysLogger.Info("TOOLSERVER", "Tool server listening", map[string]interface{}{"addr": *addr})
	if err := app.Listen(*addr); err != nil {
		log.Fatalf("[FATAL] %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
