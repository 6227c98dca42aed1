package cmd

import (
	"fmt"

	"blogmusic/db"
	"blogmusic/repository"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "数据库迁移",
	Long:  `创建或更新数据表结构，并根据配置创建初始管理员账号。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		gormDB, err := db.ConnectGormDB(cfg)
		if err != nil {
			return err
		}
		defer db.CloseGormDB()

		if err := db.AutoMigrate(gormDB); err != nil {
			return err
		}
		fmt.Println("数据表迁移完成")

		users := repository.NewGormUserRepository(gormDB)
		if err := db.EnsureAdmin(cmd.Context(), users, cfg); err != nil {
			return err
		}
		fmt.Println("管理员账号检查完成")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
