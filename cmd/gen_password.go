// gen_password 生成与注册接口一致的 bcrypt 密码哈希，用于手工导入用户或重置密码。
//
//	go run ./cmd -password 123456 [-phone 13800000000]
package main

import (
	"flag"
	"fmt"
	"os"

	"ChatRelay/pkg/util"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	password := flag.String("password", "", "明文密码（6~72 字节）")
	phone := flag.String("phone", "", "可选，生成可直接执行的 INSERT 语句")
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	flag.Parse()

	if n := len(*password); n < 6 || n > 72 {
		fmt.Fprintln(os.Stderr, "密码长度必须在 6~72 字节之间")
		os.Exit(2)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*password), *cost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加密失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("加密后的密码: %s\n", hashedPassword)
	if *phone != "" {
		fmt.Printf("\nINSERT INTO user_info (id, phone, password, created_at, updated_at) VALUES ('%s', '%s', '%s', NOW(), NOW());\n",
			util.NewUUID(), *phone, hashedPassword)
	}
}
