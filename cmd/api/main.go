package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"go-task-flow/backend/internal/database"
	"go-task-flow/backend/internal/routes"
	"go-task-flow/backend/internal/suggest"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// プロセス全体で共有するクライアントは最初のリクエストの前にここで初期化する
	db := database.InitDB()
	defer db.Close()

	rdb := database.InitRedis()
	if rdb != nil {
		defer rdb.Close()
	}

	suggestClient := suggest.NewClient(os.Getenv("SUGGEST_API_KEY"), os.Getenv("SUGGEST_API_URL"))

	r := routes.SetupRouter(db, rdb, suggestClient)

	// サーバー起動
	log.Println("Server listening on port 8080...")
	if err := r.Run(":8080"); err != nil {
		log.Fatal(err)
	}
}
