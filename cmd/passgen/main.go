// passgen generates secure repository passphrases, printed to stdout or
// written one per line to a file.
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"strings"
)

// alphabet covers ASCII letters, digits and punctuation.
const alphabet = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789" +
	"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

const passwordLength = 32

func generatePassword(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	size := big.NewInt(int64(len(alphabet)))
	for j := 0; j < length; j++ {
		i, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		b.WriteByte(alphabet[i.Int64()])
	}
	return b.String(), nil
}

func main() {
	count := flag.Int("n", 1, "number of passwords to generate")
	output := flag.String("o", "", "output file name")
	flag.Parse()

	passwords := make([]string, 0, *count)
	for j := 0; j < *count; j++ {
		password, err := generatePassword(passwordLength)
		if err != nil {
			log.Fatalf("Failed to generate password: %v", err)
		}
		passwords = append(passwords, password)
	}

	if *output != "" {
		content := strings.Join(passwords, "\n") + "\n"
		if err := os.WriteFile(*output, []byte(content), 0o600); err != nil {
			log.Fatalf("Failed to write %s: %v", *output, err)
		}
		fmt.Printf("Passwords written to %s\n", *output)
		return
	}
	for _, password := range passwords {
		fmt.Println(password)
	}
}
