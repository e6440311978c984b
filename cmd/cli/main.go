package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeovahfialho/trading-backend/internal/bootstrap"
	"github.com/jeovahfialho/trading-backend/internal/config"
	"github.com/jeovahfialho/trading-backend/internal/domain"
	"github.com/jeovahfialho/trading-backend/internal/ingestion"
	"github.com/jeovahfialho/trading-backend/internal/service"
	"github.com/jeovahfialho/trading-backend/internal/storage/cache"
	"github.com/jeovahfialho/trading-backend/pkg/logger"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "trading",
		Short: "Trading backend CLI",
		Long: `CLI for the paper trading engine.
Manages the catalog and users, places orders and reads portfolios, the ledger and quotes.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			return logger.Init(level, true)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Close()
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")

	// migrate
	var migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Creates the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				fmt.Printf("Schema applied (%s)\n", a.cfg.StorageDriver)
				return nil
			})
		},
	}

	// seed
	var seedCmd = &cobra.Command{
		Use:   "seed [file]",
		Short: "Loads the stock catalog",
		Long: `Loads the stock catalog from a symbol;company;price;change file.
Without a file, the default catalog is loaded if the catalog is empty.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				return seedCatalog(ctx, a, args)
			})
		},
	}

	// user add
	var userCmd = &cobra.Command{
		Use:   "user",
		Short: "Manages users",
	}
	var userAddCmd = &cobra.Command{
		Use:   "add [username]",
		Short: "Registers a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				user, err := a.users.Register(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("Created user %d (%s)\n", user.ID, user.Username)
				return nil
			})
		},
	}
	var userListCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists registered users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				users, err := a.users.List(ctx)
				if err != nil {
					return err
				}
				for _, u := range users {
					fmt.Printf("%6d  %-20s %s\n", u.ID, u.Username, u.CreatedAt.UTC().Format(time.RFC3339))
				}
				return nil
			})
		},
	}
	var userDeleteCmd = &cobra.Command{
		Use:   "delete [user_id]",
		Short: "Deletes a user; their trades stay in the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app) error {
				if err := a.users.Delete(ctx, userID); err != nil {
					return err
				}
				fmt.Printf("Deleted user %d\n", userID)
				return nil
			})
		},
	}
	userCmd.AddCommand(userAddCmd, userListCmd, userDeleteCmd)

	// buy / sell
	var buyCmd = tradeCommand(domain.SideBuy)
	var sellCmd = tradeCommand(domain.SideSell)

	// portfolio
	var portfolioCmd = &cobra.Command{
		Use:   "portfolio [user_id]",
		Short: "Shows a user's holdings at current prices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app) error {
				return showPortfolio(ctx, a, userID)
			})
		},
	}

	// transactions
	var transactionsCmd = &cobra.Command{
		Use:   "transactions [user_id]",
		Short: "Lists a user's trades in ledger order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app) error {
				lines, err := a.trades.GetTransactions(ctx, userID)
				if err != nil {
					return err
				}
				if len(lines) == 0 {
					fmt.Println("No transactions")
					return nil
				}
				for _, l := range lines {
					fmt.Println(l)
				}
				return nil
			})
		},
	}

	// feed
	var feedCmd = &cobra.Command{
		Use:   "feed",
		Short: "Shows the most recent trades across all users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				feed, err := a.trades.GetRecentTransactions(ctx)
				if err != nil {
					return err
				}
				for _, e := range feed {
					fmt.Printf("%-20s %-4s %6d %-12s @ $%s  %s\n",
						e.Username, e.Side, e.Quantity, e.Symbol,
						e.Price.StringFixed(2), e.Timestamp.Format(time.RFC3339))
				}
				return nil
			})
		},
	}

	// quote
	var quoteCmd = &cobra.Command{
		Use:   "quote [symbol]",
		Short: "Shows the current price of a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				q, err := a.quotes.GetQuote(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("%s  $%s  (%s)\n", q.Symbol, q.Price.StringFixed(2), q.ChangeAmount.StringFixed(2))
				return nil
			})
		},
	}

	// history
	var historyCmd = &cobra.Command{
		Use:   "history [symbol] [timeframe]",
		Short: "Prints a synthetic price series (1D, 1W, 1M, 1Y)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			timeframe := domain.Timeframe1D.Name
			if len(args) == 2 {
				timeframe = args[1]
			}
			return withApp(func(ctx context.Context, a *app) error {
				points, err := a.history.GenerateHistory(ctx, args[0], timeframe)
				if err != nil {
					return err
				}
				for _, p := range points {
					fmt.Printf("%s  %s\n", p.Timestamp.Format(time.RFC3339), p.Price.StringFixed(2))
				}
				return nil
			})
		},
	}

	// replay
	var replayCmd = &cobra.Command{
		Use:   "replay [orders.csv]",
		Short: "Executes a file of user_id;symbol;side;quantity orders",
		Long: `Executes every order in the file. Orders for the same user and symbol run
in file order; other orders run in parallel across the configured workers.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users, _ := cmd.Flags().GetStringSlice("users")
			return withApp(func(ctx context.Context, a *app) error {
				return replayOrders(ctx, a, args[0], users)
			})
		},
	}
	replayCmd.Flags().StringSlice("users", nil, "Usernames to register before replaying")

	// health
	var healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Checks the storage backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkHealth()
		},
	}

	rootCmd.AddCommand(migrateCmd, seedCmd, userCmd, buyCmd, sellCmd, portfolioCmd,
		transactionsCmd, feedCmd, quoteCmd, historyCmd, replayCmd, healthCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

type app struct {
	cfg       *config.Config
	stores    *bootstrap.Stores
	cache     *cache.RedisCache
	users     *service.UserService
	trades    *service.TradeService
	quotes    *service.QuoteService
	portfolio *service.PortfolioService
	history   *service.HistoryService
	ingestion *service.IngestionService
}

// withApp opens the configured stores, builds the services and runs fn.
// The memory driver gets the default catalog so one-shot commands have
// something to trade.
func withApp(fn func(ctx context.Context, a *app) error) error {
	ctx := context.Background()

	cfg, err := config.Parse()
	if err != nil {
		return err
	}

	stores, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	a := &app{cfg: cfg, stores: stores}

	var quoteCache service.QuoteCache
	if a.cache = bootstrap.ConnectCache(cfg); a.cache != nil {
		defer a.cache.Close()
		quoteCache = a.cache
	}

	a.users = service.NewUserService(stores.Users)
	a.quotes = service.NewQuoteService(stores.Catalog, quoteCache, cfg.QuoteCacheTTL)
	a.trades = service.NewTradeService(stores.UnitOfWork, stores.Ledger, stores.Users, stores.Catalog)
	a.portfolio = service.NewPortfolioService(stores.Positions, a.quotes)
	a.history = service.NewHistoryService(a.quotes)

	parser := ingestion.NewParser(cfg.BatchSize, cfg.Workers)
	loader := ingestion.NewCatalogLoader(stores.Catalog, cfg.BatchSize)
	a.ingestion = service.NewIngestionService(parser, loader, a.trades, cfg.Workers)

	if cfg.StorageDriver == config.StorageMemory {
		if _, err := a.ingestion.SeedDefaults(ctx); err != nil {
			return err
		}
	}

	return fn(ctx, a)
}

func tradeCommand(side domain.Side) *cobra.Command {
	verb := strings.ToLower(string(side))
	return &cobra.Command{
		Use:   verb + " [user_id] [symbol] [quantity]",
		Short: fmt.Sprintf("Places a market %s order", verb),
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			quantity, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[2])
			}
			return withApp(func(ctx context.Context, a *app) error {
				confirmation, err := a.trades.Execute(ctx, side, userID, args[1], quantity)
				if err != nil {
					return err
				}
				fmt.Printf("%s @ $%s\n", confirmation.Message, confirmation.Trade.Price.StringFixed(2))
				return nil
			})
		},
	}
}

func seedCatalog(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		count, err := a.ingestion.SeedDefaults(ctx)
		if err != nil {
			return err
		}
		if count == 0 {
			fmt.Println("Catalog already populated, nothing to seed")
			return nil
		}
		fmt.Printf("Seeded %d stocks\n", count)
		return invalidateQuotes(ctx, a)
	}

	result, err := a.ingestion.ProcessCatalogFile(ctx, args[0])
	if err != nil {
		return err
	}

	for _, e := range result.Errors {
		fmt.Printf("  skipped: %v\n", e)
	}
	fmt.Printf("Loaded %d stocks from %s\n", result.RecordsCount, result.FilePath)

	return invalidateQuotes(ctx, a)
}

// invalidateQuotes drops cached quotes so the new prices are visible at once.
func invalidateQuotes(ctx context.Context, a *app) error {
	if a.cache == nil {
		return nil
	}
	if err := a.cache.DeletePattern(ctx, "quote:*"); err != nil {
		return fmt.Errorf("failed to invalidate quotes: %w", err)
	}
	return a.cache.Delete(ctx, "stocks:all")
}

func showPortfolio(ctx context.Context, a *app, userID int64) error {
	entries, err := a.portfolio.GetPortfolio(ctx, userID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No positions")
		return nil
	}

	fmt.Printf("%-12s %8s %12s %14s\n", "SYMBOL", "QTY", "PRICE", "VALUE")
	for _, e := range entries {
		fmt.Printf("%-12s %8d %12s %14s\n",
			e.Symbol, e.Quantity, e.CurrentPrice.StringFixed(2), e.TotalValue.StringFixed(2))
	}
	fmt.Printf("%-12s %8s %12s %14s\n", "TOTAL", "", "", service.TotalValue(entries).StringFixed(2))
	return nil
}

func replayOrders(ctx context.Context, a *app, path string, usernames []string) error {
	for _, name := range usernames {
		user, err := a.users.Register(ctx, name)
		if err != nil {
			return err
		}
		fmt.Printf("Registered %s as user %d\n", user.Username, user.ID)
	}

	start := time.Now()
	result, err := a.ingestion.ReplayOrdersFile(ctx, path)
	if err != nil {
		return err
	}

	for _, e := range result.Errors {
		fmt.Printf("  skipped: %v\n", e)
	}
	for _, r := range result.Results {
		if r.Error != nil {
			fmt.Printf("  line %d rejected: %v\n", r.Order.Line, r.Error)
		}
	}

	fmt.Printf("Replayed %s in %s: %d executed, %d rejected\n",
		result.FilePath, time.Since(start).Round(time.Millisecond), result.Executed, result.Rejected)
	return nil
}

func checkHealth() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := config.Parse()
	if err != nil {
		return err
	}

	fmt.Printf("Storage (%s): ", cfg.StorageDriver)
	stores, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		fmt.Printf("error: %v\n", err)
	} else {
		defer stores.Close()
		healthy := true
		for name, check := range stores.Checks {
			if err := check(ctx); err != nil {
				fmt.Printf("%s error: %v ", name, err)
				healthy = false
			}
		}
		if healthy {
			fmt.Println("OK")
		} else {
			fmt.Println()
		}
	}

	fmt.Print("Redis: ")
	redisCache := bootstrap.ConnectCache(cfg)
	if redisCache == nil {
		fmt.Println("not available")
		return nil
	}
	defer redisCache.Close()

	if err := redisCache.HealthCheck(ctx); err != nil {
		fmt.Printf("error: %v\n", err)
		return nil
	}
	fmt.Println("OK")
	return nil
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return id, nil
}
