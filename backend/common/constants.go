package common

import (
	"flag"
	"fmt"
	"os"
	"time"
)

var Version = "v0.0.0"
var SystemName = "Filebox"

var (
	Port          = flag.Int("port", 3000, "the listening port")
	PrintVersion  = flag.Bool("version", false, "print version and exit")
	PrintHelpFlag = flag.Bool("help", false, "print help and exit")
	ConfigPath    = flag.String("config", "", "path of the yaml config file")
)

// 数据库
var SQLDSN = ""
var SQLitePath = "data/filebox.db"

// 文件存储根目录，每个用户一个子目录
var StorageRoot = "storage"

// JWT
var JWTSecret = ""
var JWTAlgorithm = "HS256"
var TokenExpireMinutes = 30

// Redis
var RedisConnString = ""

// 额外语言文件目录，为空时只使用内置文案
var LocalesDir = ""

var FileListCacheTTL = 60 * time.Second

// 请求频率限制，每个 IP 每分钟的请求数
var GlobalApiRateLimitNum = 300
var CriticalRateLimitNum = 20

const RateLimitDuration = time.Minute

// 上传流式写入的分块大小
const UploadChunkSize = 1024

const SearchDefaultLimit = 100

func PrintHelp() {
	fmt.Println(SystemName + " " + Version)
	fmt.Println("Usage: filebox [--port <port>] [--config <path>] [--version] [--help]")
	flag.CommandLine.SetOutput(os.Stdout)
	flag.PrintDefaults()
}
