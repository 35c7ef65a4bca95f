package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/trojan-ui/trojan-ui/config"
	"github.com/trojan-ui/trojan-ui/database"
	"github.com/trojan-ui/trojan-ui/logger"
	"github.com/trojan-ui/trojan-ui/web"
	"github.com/trojan-ui/trojan-ui/web/service"

	"github.com/op/go-logging"
	"github.com/spf13/cobra"
)

func initLogger() {
	switch config.GetLogLevel() {
	case config.Debug:
		logger.InitLogger(logging.DEBUG)
	case config.Info:
		logger.InitLogger(logging.INFO)
	case config.Notice:
		logger.InitLogger(logging.NOTICE)
	case config.Warn:
		logger.InitLogger(logging.WARNING)
	case config.Error:
		logger.InitLogger(logging.ERROR)
	default:
		log.Fatal("unknown log level:", config.GetLogLevel())
	}
}

func runWebServer() {
	log.Printf("%v %v", config.GetName(), config.GetVersion())

	initLogger()
	defer logger.CloseLogger()

	err := database.InitDB(config.GetDBPath())
	if err != nil {
		log.Fatal(err)
	}
	defer database.CloseDB()

	server := web.NewServer()
	err = server.Start()
	if err != nil {
		log.Println(err)
		return
	}

	sigCh := make(chan os.Signal, 1)
	// Trap shutdown signals
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, os.Interrupt)
	for {
		sig := <-sigCh

		switch sig {
		case syscall.SIGHUP:
			logger.Info("received SIGHUP, restarting web server")
			err := server.Stop()
			if err != nil {
				logger.Warning("stop server err:", err)
			}
			server = web.NewServer()
			err = server.Start()
			if err != nil {
				log.Println(err)
				return
			}
		default:
			err := server.Stop()
			if err != nil {
				logger.Warning("stop server err:", err)
			}
			return
		}
	}
}

func resetSetting() {
	settingService := service.SettingService{}
	err := settingService.ResetSettings()
	if err != nil {
		fmt.Println("reset setting failed:", err)
	} else {
		fmt.Println("reset setting success")
	}
}

func showSetting() {
	settingService := service.SettingService{}
	port, err := settingService.GetPort()
	if err != nil {
		fmt.Println("get current port failed,error info:", err)
	}
	domain, err := settingService.GetWebDomain()
	if err != nil {
		fmt.Println("get current domain failed,error info:", err)
	}
	maxNum, err := settingService.GetUserMaxNum()
	if err != nil {
		fmt.Println("get current user limit failed,error info:", err)
	}
	fmt.Println("current panel settings as follows:")
	fmt.Println("port:", port)
	fmt.Println("domain:", domain)
	fmt.Println("max users:", maxNum)
}

// updateSetting writes its report to w. Port, domain and trusted proxies are
// read when the panel starts, so those changes need a restart.
func updateSetting(w io.Writer, port int, domain string, maxUsers int, trustedProxies string) {
	settingService := service.SettingService{}

	if port > 0 {
		if err := settingService.SetPort(port); err != nil {
			fmt.Fprintln(w, "set port failed:", err)
		} else {
			fmt.Fprintf(w, "set port %v success, restart the panel to apply it\n", port)
		}
	}
	if domain != "" {
		if err := settingService.SetWebDomain(domain); err != nil {
			fmt.Fprintln(w, "set domain failed:", err)
		} else {
			fmt.Fprintf(w, "set domain %v success, restart the panel to apply it\n", domain)
		}
	}
	if trustedProxies != "" {
		if trustedProxies == "none" {
			trustedProxies = ""
		}
		if err := settingService.SetTrustedProxies(trustedProxies); err != nil {
			fmt.Fprintln(w, "set trusted proxies failed:", err)
		} else {
			fmt.Fprintln(w, "set trusted proxies success, restart the panel to apply it")
		}
	}
	if maxUsers != 0 {
		if err := settingService.SetUserMaxNum(maxUsers); err != nil {
			fmt.Fprintln(w, "set max users failed:", err)
		} else {
			fmt.Fprintf(w, "set max users %v success\n", maxUsers)
		}
	}
}

// migrateDb brings the schema up to date, recomputes every node's user
// count and re-evaluates every user's status.
func migrateDb() {
	err := database.InitDB(config.GetDBPath())
	if err != nil {
		log.Fatal(err)
	}
	defer database.CloseDB()

	fmt.Println("Start migrating database...")
	ctx := context.Background()
	store := database.DefaultStore()
	nodes, err := store.ListNodes(ctx)
	if err != nil {
		log.Fatal(err)
	}
	for _, node := range nodes {
		if err := store.RefreshNodeUserNumber(ctx, node.Name); err != nil {
			log.Fatal(err)
		}
	}
	usage := service.UsageService{}
	changed, err := usage.CheckAll(ctx, store)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Migration done! %d nodes recounted, %d users changed status\n", len(nodes), changed)
}

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Println("load env file failed:", err)
	}

	var rootCmd = &cobra.Command{
		Use:     config.GetName(),
		Version: config.GetVersion(),
	}

	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the web server",
		Run: func(cmd *cobra.Command, args []string) {
			runWebServer()
		},
	}

	var migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database and recompute derived counters",
		Run: func(cmd *cobra.Command, args []string) {
			migrateDb()
		},
	}

	var settingCmd = &cobra.Command{
		Use:   "setting",
		Short: "Show, update or reset panel settings",
		Run: func(cmd *cobra.Command, args []string) {
			err := database.InitDB(config.GetDBPath())
			if err != nil {
				fmt.Println(err)
				return
			}
			defer database.CloseDB()

			reset, _ := cmd.Flags().GetBool("reset")
			show, _ := cmd.Flags().GetBool("show")
			port, _ := cmd.Flags().GetInt("port")
			domain, _ := cmd.Flags().GetString("domain")
			maxUsers, _ := cmd.Flags().GetInt("max-users")
			trustedProxies, _ := cmd.Flags().GetString("trusted-proxies")

			if reset {
				resetSetting()
			}
			updateSetting(os.Stdout, port, domain, maxUsers, trustedProxies)
			if show {
				showSetting()
			}
		},
	}

	settingCmd.Flags().Bool("reset", false, "reset all settings to defaults")
	settingCmd.Flags().Bool("show", false, "show current settings")
	settingCmd.Flags().Int("port", 0, "set panel port")
	settingCmd.Flags().String("domain", "", "set the public domain used for local nodes and subscribe links")
	settingCmd.Flags().Int("max-users", 0, "set the registration limit, -1 for unlimited")
	settingCmd.Flags().String("trusted-proxies", "", "comma separated proxy IPs/CIDRs allowed to forward client addresses, \"none\" to clear")

	rootCmd.AddCommand(runCmd, migrateCmd, settingCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
