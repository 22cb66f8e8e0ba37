package main

import "github.com/Migiro-Johans/HRS/internal/app/server"

func main() {
	server.Run()
}
