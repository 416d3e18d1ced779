package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"roomchat/backend/internal/config"
	"roomchat/backend/internal/identity"
	"roomchat/backend/internal/models"
	"roomchat/backend/internal/storage"

	"github.com/mama165/sdk-go/logs"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const usage = `Usage: admin <command> [args]

Commands:
  create-user <username> <email>
  token <user_id> [hours]
  add-member <room_id> <user_id>`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, _, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()
	command, args := os.Args[1], os.Args[2:]

	// token needs no database.
	if command == "token" {
		if len(args) < 1 || len(args) > 2 {
			fmt.Println("Usage: admin token <user_id> [hours]")
			os.Exit(1)
		}
		userID := parseID(args[0], "user id")
		hours := 24
		if len(args) == 2 {
			if hours, err = strconv.Atoi(args[1]); err != nil || hours <= 0 {
				fmt.Println("Invalid duration. Please provide a positive number of hours.")
				os.Exit(1)
			}
		}
		token, err := identity.IssueToken(cfg.JWTSecret, userID, time.Duration(hours)*time.Hour)
		if err != nil {
			log.Fatalf("Error issuing token: %v", err)
		}
		fmt.Println(token)
		return
	}

	dsn, err := cfg.DSN()
	if err != nil {
		log.Fatalf("invalid database settings: %v", err)
	}
	db, err := gorm.Open(postgres.Open(dsn), storage.GormConfig())
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	// No redis needed for admin CLI
	store := storage.NewStorageService(db, nil, logs.GetLoggerFromString(cfg.LogLevel))
	if err := store.AutoMigrate(); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	switch command {
	case "create-user":
		if len(args) != 2 {
			fmt.Println("Usage: admin create-user <username> <email>")
			os.Exit(1)
		}
		user := &models.User{Username: args[0], Email: args[1]}
		if err := store.SaveUser(ctx, user); err != nil {
			log.Fatalf("Error creating user: %v", err)
		}
		fmt.Printf("User %s created with id %d.\n", user.Username, user.ID)
	case "add-member":
		if len(args) != 2 {
			fmt.Println("Usage: admin add-member <room_id> <user_id>")
			os.Exit(1)
		}
		roomID, userID := parseID(args[0], "room id"), parseID(args[1], "user id")
		if err := addMember(ctx, store, roomID, userID); err != nil {
			log.Fatalf("Error adding member: %v", err)
		}
		fmt.Printf("User %d is a member of room %d.\n", userID, roomID)
	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}

func parseID(raw, what string) uint {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		fmt.Printf("Invalid %s. Please provide a positive integer.\n", what)
		os.Exit(1)
	}
	return uint(id)
}

func addMember(ctx context.Context, s storage.Storage, roomID, userID uint) error {
	room, err := s.FetchRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room == nil {
		return fmt.Errorf("room %d does not exist", roomID)
	}
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user %d does not exist", userID)
	}
	return s.InsertMembership(ctx, roomID, userID)
}
