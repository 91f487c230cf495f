package commands

import "errors"

var errMissingCredentials = errors.New("a username and password are required, pass -u and -p or set them in the config")
