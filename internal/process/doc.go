// Package process terminates renderer processes together with their children.
package process
