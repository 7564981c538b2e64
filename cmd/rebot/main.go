// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/socialfi/rebot/component"
)

var stop = make(chan os.Signal, 1)

func main() {
	manager := component.Prepare()
	manager.Start()
	graceful(manager.Stop)
}

func graceful(that func()) {
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logrus.Info("gracefully stopping...")
	that()
}
