package ocr

// DemoStatementText is what the demo provider returns for every file.
const DemoStatementText = `Gig Platform Earnings Summary
Platform: Deliveroo
Date: 2025-12-05
Total Earnings: ₹420.00
Base Pay: ₹250.00
Incentive/Bonus: ₹100.00
Deduction/Penalty: ₹50.00
Trip Count: 10
Hours Logged: 2.5`
