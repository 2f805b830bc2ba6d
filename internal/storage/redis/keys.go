package redis

import "fmt"

// Key prefix for all chat data
const keyPrefix = "tlschat"

// accountKey returns the Redis key for an Account
func accountKey(login string) string {
	return fmt.Sprintf("%s:account:%s", keyPrefix, login)
}
