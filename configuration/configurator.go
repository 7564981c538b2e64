// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package configuration

import (
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	ConfigName     = "rebot"
	ConfigType     = "yaml"
	ConfigFilePath = ConfigName + "." + ConfigType
)

func Load() *Configuration {
	printWorkingDir()
	actual := load()
	printConfig(actual)
	return actual
}

func load() *Configuration {
	v := viper.New()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("rebot")

	v.SetConfigName(ConfigName)
	v.SetConfigType(ConfigType)
	v.AddConfigPath(".")
	v.AddConfigPath(".artifacts")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Warnf("config file not found (file=%v). Default configuration is used", ConfigFilePath)
		} else {
			log.Error(errors.Wrapf(err, "failed to load config. Default configuration is used"))
		}
		return Default()
	}

	actual := Default()
	err := v.Unmarshal(actual)
	if err != nil {
		log.Error(errors.Wrapf(err, "failed to unmarshal config file into configuration structure. Default configuration is used"))
		return Default()
	}

	return actual
}

func printWorkingDir() {
	wd, _ := os.Getwd()
	log.Infof("Working dir: %s", wd)
}

func printConfig(c *Configuration) {
	cc := cleanSecrets(c)
	out, err := yaml.Marshal(cc)
	if err != nil {
		log.Error(errors.Wrapf(err, "failed to marshal config structure"))
		return
	}
	log.Infof("Loaded configuration: \n %s \n", string(out))
}

// cleanSecrets copies the config with the db password and the master
// mnemonic masked, so the startup echo never leaks them into logs.
func cleanSecrets(c *Configuration) *Configuration {
	cc := *c
	cc.DB.URL = replacePassword(cc.DB.URL)
	if cc.Gateway.Mnemonic != "" {
		cc.Gateway.Mnemonic = "<masked>"
	}
	if cc.Gateway.ShareSecret != "" {
		cc.Gateway.ShareSecret = "<masked>"
	}
	return &cc
}

func replacePassword(url string) string {
	re := regexp.MustCompile(`^(?P<start>.*)(:(?P<pass>[^@\/:?]+)@)(?P<end>.*)$`)
	result := []byte{}
	if re.MatchString(url) {
		for _, submatches := range re.FindAllStringSubmatchIndex(url, -1) {
			result = re.ExpandString(result, `$start:<masked>@$end`, url, submatches)
		}
		return string(result)
	}
	return url
}
