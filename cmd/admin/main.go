package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"

	"gigmarket/backend/internal/api/handler"
	"gigmarket/backend/internal/config"
	"gigmarket/backend/internal/models"
	"gigmarket/backend/internal/notify"
	"gigmarket/backend/internal/orders"
	"gigmarket/backend/internal/storage"

	"github.com/lib/pq"
)

const usage = `Usage: admin <command> [args]

Commands:
  mark-paid <order_id>                       confirm payment for an order
  orders <user_id>                           list a user's orders
  token <user_id>                            issue an API token
  add-user <name> <email> [skill...]         create a profile
  add-gig <seller_id> <title> <price> <days> create a gig`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := storage.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	storageSvc := storage.NewStorageService(db, nil) // No redis needed for admin CLI
	// Events from the CLI are not pushed to connected clients.
	orderSvc := orders.NewService(storageSvc, notify.Nop{})
	ctx := context.Background()

	args := os.Args[2:]
	switch os.Args[1] {
	case "mark-paid":
		requireArgs(args, 1, "admin mark-paid <order_id>")
		order, err := orderSvc.MarkPaid(ctx, args[0])
		if err != nil {
			log.Fatalf("Error marking order paid: %v", err)
		}
		fmt.Printf("Order %s is paid (status %s).\n", order.ID, order.Status)

	case "orders":
		requireArgs(args, 1, "admin orders <user_id>")
		list, err := orderSvc.ListForUser(ctx, args[0])
		if err != nil {
			log.Fatalf("Error listing orders: %v", err)
		}
		for _, o := range list {
			fmt.Printf("%s\t%s\tpaid=%t\tgig=%s\tmessages=%d\n", o.ID, o.Status, o.Paid, o.GigID, len(o.Conversation))
		}

	case "token":
		requireArgs(args, 1, "admin token <user_id>")
		auth := handler.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer)
		token, err := auth.IssueToken(args[0], config.DevTokenTTL)
		if err != nil {
			log.Fatalf("Error issuing token: %v", err)
		}
		fmt.Println(token)

	case "add-user":
		requireArgs(args, 2, "admin add-user <name> <email> [skill...]")
		if err := storage.Migrate(db); err != nil {
			log.Fatalf("Error migrating: %v", err)
		}
		user := &models.User{Name: args[0], Email: args[1], Skills: pq.StringArray(args[2:])}
		if err := storageSvc.SaveUser(ctx, user); err != nil {
			log.Fatalf("Error creating user: %v", err)
		}
		printJSON(user)

	case "add-gig":
		requireArgs(args, 4, "admin add-gig <seller_id> <title> <price> <days>")
		price, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			fmt.Println("Invalid price. Please provide an integer amount.")
			os.Exit(1)
		}
		days, err := strconv.Atoi(args[3])
		if err != nil {
			fmt.Println("Invalid delivery days. Please provide an integer.")
			os.Exit(1)
		}
		if _, err := storageSvc.GetUserByID(ctx, args[0]); err != nil {
			log.Fatalf("Unknown seller %s: %v", args[0], err)
		}
		gig := &models.Gig{SellerID: args[0], Title: args[1], Price: price, DeliveryDays: days}
		if err := storageSvc.SaveGig(ctx, gig); err != nil {
			log.Fatalf("Error creating gig: %v", err)
		}
		printJSON(gig)

	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}

func requireArgs(args []string, n int, help string) {
	if len(args) < n {
		fmt.Println("Usage: " + help)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
