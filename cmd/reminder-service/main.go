package main

import (
	"os"

	"github.com/kikilabs/kiki-reminders/reminderservice"
)

func main() {
	if err := reminderservice.Run(); err != nil {
		os.Exit(1)
	}
}
