package mothra

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "mothra")
