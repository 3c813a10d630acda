//go:build !(tinygo && bootdebug)

package app

import "ember/hal"

func bootScreen(hal.HAL, string) {}
