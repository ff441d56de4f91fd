package main

import (
	"context"
	"errors"
)

func main() {
	a := mustBootstrapCustomsAPI()
	defer a.Close()

	if err := a.Run(); err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
